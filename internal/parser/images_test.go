package parser

import (
	"testing"
)

const articleURL = "https://news.example.org/2024/05/lagos-schools"

func TestResolveImageChain(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantURL   string
		wantStage string
	}{
		{
			name: "open graph relative to article origin",
			html: `<html><head>
				<meta property="og:image" content="/images/lead.jpg">
				<meta name="twitter:image" content="https://cdn.example.org/tw.jpg">
			</head><body></body></html>`,
			wantURL:   "https://news.example.org/images/lead.jpg",
			wantStage: StageOpenGraph,
		},
		{
			name: "twitter card",
			html: `<html><head>
				<meta name="twitter:image" content="https://cdn.example.org/tw.jpg">
			</head><body></body></html>`,
			wantURL:   "https://cdn.example.org/tw.jpg",
			wantStage: StageTwitter,
		},
		{
			name: "json-ld image object",
			html: `<html><head><script type="application/ld+json">
				{"@type":"NewsArticle","image":{"@type":"ImageObject","url":"https://cdn.example.org/ld.jpg"}}
			</script></head><body></body></html>`,
			wantURL:   "https://cdn.example.org/ld.jpg",
			wantStage: StageJSONLD,
		},
		{
			name: "json-ld array with image list",
			html: `<html><head><script type="application/ld+json">
				[{"@type":"NewsArticle","image":["//cdn.example.org/first.jpg","https://cdn.example.org/second.jpg"]}]
			</script></head><body></body></html>`,
			wantURL:   "https://cdn.example.org/first.jpg",
			wantStage: StageJSONLD,
		},
		{
			name: "malformed json-ld falls through to featured",
			html: `<html><head><script type="application/ld+json">{"image": </script></head>
				<body><div class="featured-image"><img data-src="feature.jpg"></div></body></html>`,
			wantURL:   "https://news.example.org/2024/05/feature.jpg",
			wantStage: StageFeatured,
		},
		{
			name: "dimensioned content image",
			html: `<html><body>
				<article>
					<img src="/static/site-logo.png" width="50" height="50">
					<p>School resumes in Lagos after strike.</p>
					<img src="/photos/classroom.jpg" width="300" height="300">
				</article>
			</body></html>`,
			wantURL:   "https://news.example.org/photos/classroom.jpg",
			wantStage: StageContent,
		},
		{
			name: "first non-decorative content image",
			html: `<html><body>
				<div class="post-body">
					<div class="main-content">
						<span><img src="/img/share-button.png"></span>
						<span><img src="/img/pupils.jpg"></span>
					</div>
				</div>
			</body></html>`,
			wantURL:   "https://news.example.org/img/pupils.jpg",
			wantStage: StageContent,
		},
		{
			name:      "nothing found",
			html:      `<html><body><p>No images here.</p></body></html>`,
			wantURL:   "",
			wantStage: "",
		},
	}

	r := NewImageResolver(testLogger)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotURL, gotStage := r.Resolve(makeResp(articleURL, tt.html))
			if gotURL != tt.wantURL {
				t.Errorf("url = %q, want %q", gotURL, tt.wantURL)
			}
			if gotStage != tt.wantStage {
				t.Errorf("stage = %q, want %q", gotStage, tt.wantStage)
			}
			if gotURL != "" && !IsAbsoluteHTTP(gotURL) {
				t.Errorf("image %q is not absolute", gotURL)
			}
		})
	}
}

func TestResolveSkipsNonHTTPCandidate(t *testing.T) {
	html := `<html><head>
		<meta property="og:image" content="data:image/png;base64,AAAA">
		<meta name="twitter:image" content="https://cdn.example.org/tw.jpg">
	</head><body></body></html>`

	gotURL, gotStage := NewImageResolver(testLogger).Resolve(makeResp(articleURL, html))
	if gotURL != "https://cdn.example.org/tw.jpg" || gotStage != StageTwitter {
		t.Errorf("got %q via %q", gotURL, gotStage)
	}
}

func TestPublishedTime(t *testing.T) {
	html := `<html><head>
		<meta property="article:published_time" content="2024-05-02T08:30:00+01:00">
	</head><body></body></html>`

	doc, err := makeResp(articleURL, html).Document()
	if err != nil {
		t.Fatal(err)
	}
	got := PublishedTime(doc)
	if got == nil {
		t.Fatal("expected a published time")
	}
	if got.Hour() != 7 || got.Day() != 2 {
		t.Errorf("published time = %v, want 2024-05-02 07:30 UTC", got)
	}
}
