package parser

import (
	"strings"
	"testing"
)

func TestContentTextPrefersArticleBody(t *testing.T) {
	html := `<html lang="en-GB"><head><title>Exams</title>
		<script>var tracking = "should not appear";</script></head>
	<body>
		<nav>Home Sports Politics</nav>
		<article>
			<h1>WAEC releases results in Ghana</h1>
			<p>The West African Examinations Council released results for students across Ghana on Monday.</p>
			<p>School heads said the pass rate improved compared with last year.</p>
		</article>
		<footer>Copyright</footer>
	</body></html>`

	e := NewContentExtractor(testLogger)
	text := e.Text(makeResp("https://example.com/news/waec", html))

	if !strings.Contains(text, "West African Examinations Council") {
		t.Errorf("article text missing: %q", text)
	}
	if strings.Contains(text, "should not appear") {
		t.Errorf("script content leaked into text: %q", text)
	}
	if strings.Contains(text, "  ") {
		t.Errorf("whitespace not collapsed: %q", text)
	}
}

func TestFallbackTextStripsChrome(t *testing.T) {
	html := `<html><body>
		<header>Site header</header>
		<p>Plain body paragraph about a school in Accra.</p>
		<script>ignored()</script>
		<footer>Site footer</footer>
	</body></html>`

	doc, err := makeResp("https://example.com/x", html).Document()
	if err != nil {
		t.Fatal(err)
	}
	text := fallbackText(doc)
	if text != "Plain body paragraph about a school in Accra." {
		t.Errorf("fallback text = %q", text)
	}
}

func TestHTMLLang(t *testing.T) {
	if got := HTMLLang(makeResp("https://example.com", `<html lang="EN-us"><body></body></html>`)); got != "en-us" {
		t.Errorf("lang = %q", got)
	}
	if got := HTMLLang(makeResp("https://example.com", `<html><body></body></html>`)); got != "" {
		t.Errorf("lang = %q, want empty", got)
	}
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"og title", `<html><head><meta property="og:title" content="  Exams begin in Accra "><title>Site</title></head><body><h1>H1</h1></body></html>`, "Exams begin in Accra"},
		{"h1", `<html><head><title>Site</title></head><body><h1>Teachers   strike in Kenya</h1></body></html>`, "Teachers strike in Kenya"},
		{"title", `<html><head><title>Schools reopen</title></head><body></body></html>`, "Schools reopen"},
		{"none", `<html><body><p>text</p></body></html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := makeResp("https://example.com/a", tt.html).Document()
			if err != nil {
				t.Fatal(err)
			}
			if got := PageTitle(doc); got != tt.want {
				t.Errorf("PageTitle = %q, want %q", got, tt.want)
			}
		})
	}
}
