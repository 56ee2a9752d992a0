package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - ansuz\n---\n# Hello\nBody text.\n")
	r, err := Parse("notes/hello.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.NoteID != "notes/hello" {
		t.Errorf("note id = %q, want %q", r.NoteID, "notes/hello")
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "ansuz" {
		t.Errorf("tags = %v, want [go ansuz]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse("plain.md", []byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse("bad.md", []byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Invalid YAML falls back to treating everything as body.
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestParse_FrontmatterCoercion(t *testing.T) {
	input := []byte("---\ntitle: T\nyear: 2024\ndraft: true\naliases:\n  - one\n  - two\n---\nbody\n")
	r, err := Parse("t.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter["year"] != "2024" {
		t.Errorf("year = %q, want 2024", r.Frontmatter["year"])
	}
	if r.Frontmatter["draft"] != "true" {
		t.Errorf("draft = %q, want true", r.Frontmatter["draft"])
	}
	if r.Frontmatter["aliases"] != "one,two" {
		t.Errorf("aliases = %q, want one,two", r.Frontmatter["aliases"])
	}
}

func TestNoteID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"notes/hello.md", "notes/hello"},
		{"hello.md", "hello"},
		{"a/b/c.markdown", "a/b/c"},
		{"no-ext", "no-ext"},
	}
	for _, c := range cases {
		if got := NoteID(c.in); got != c.want {
			t.Errorf("NoteID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractLinks_OrderAndDedup(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	links := extractLinks(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	links := extractLinks("see [[ ]] and [[|alias]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]string{"tags": "alpha"}
	body := "Some text #beta and #alpha again."
	tags := extractTags(body, fm)
	// alpha from FM, beta from body; alpha not duplicated.
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestExtractTags_Unicode(t *testing.T) {
	tags := extractTags("关于 #机器学习 的笔记 #RAG", nil)
	if len(tags) != 2 || tags[0] != "机器学习" || tags[1] != "RAG" {
		t.Errorf("tags = %v", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]string{"title": "FM Title"}
	title := deriveTitle(fm, "# H1 Title\ntext", "x.md")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_FileNameFallback(t *testing.T) {
	title := deriveTitle(nil, "no headings here", "notes/my-note.md")
	if title != "my-note" {
		t.Errorf("title = %q, want %q", title, "my-note")
	}
}

func TestPlainText(t *testing.T) {
	body := "# Heading\nSome **bold** and _em_ text with [[Target|alias]] and [link](http://x).\n\n```go\ncode here\n```\nInline `code` end."
	got := PlainText(body)
	for _, banned := range []string{"#", "**", "[[", "](", "```", "`"} {
		if strings.Contains(got, banned) {
			t.Errorf("plain text still contains %q: %q", banned, got)
		}
	}
	for _, want := range []string{"bold", "alias", "link", "code here", "Inline code end."} {
		if !strings.Contains(got, want) {
			t.Errorf("plain text missing %q: %q", want, got)
		}
	}
}
