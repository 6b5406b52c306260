package parser

import (
	"testing"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Education desk</title>
	<link>https://feeds.example.com/</link>
	<item>
		<title>University of Nairobi admits record intake</title>
		<link>https://news.example.com/nairobi-intake#utm</link>
		<description>Record numbers of students joined this year.</description>
		<pubDate>Mon, 06 May 2024 10:00:00 GMT</pubDate>
		<enclosure url="https://cdn.example.com/nairobi.jpg" type="image/jpeg" length="1000"/>
	</item>
	<item>
		<title>University of Nairobi admits record intake</title>
		<link>https://news.example.com/nairobi-intake</link>
	</item>
	<item>
		<title>No link item</title>
	</item>
	<item>
		<title>Teachers strike in Abuja</title>
		<link>https://news.example.com/abuja-strike</link>
	</item>
</channel>
</rss>`

func TestFeedExtract(t *testing.T) {
	e := NewFeedExtractor(300, testLogger)
	cands, err := e.Extract(makeResp("https://news.example.com/feed.xml", testFeed))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(cands), urls(cands))
	}

	first := cands[0]
	if first.URL != "https://news.example.com/nairobi-intake" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Text != "University of Nairobi admits record intake" {
		t.Errorf("text = %q", first.Text)
	}
	if first.ListingImage != "https://cdn.example.com/nairobi.jpg" {
		t.Errorf("image = %q", first.ListingImage)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2024 {
		t.Errorf("published = %v", first.PublishedAt)
	}

	if cands[1].URL != "https://news.example.com/abuja-strike" {
		t.Errorf("second url = %q", cands[1].URL)
	}
}

func TestFeedExtractInvalid(t *testing.T) {
	e := NewFeedExtractor(300, testLogger)
	if _, err := e.Extract(makeResp("https://news.example.com/feed.xml", "<html>not a feed</html>")); err == nil {
		t.Fatal("expected parse error")
	}
}
