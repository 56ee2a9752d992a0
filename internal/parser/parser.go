// Package parser turns raw vault Markdown into the structured note view the
// graph store indexes: frontmatter, tags, wikilinks, title, and a plain-text
// body with structural markup stripped.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([\pL][\pL\pN_/-]*)`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisRe = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)`)
	codeFence  = regexp.MustCompile("(?s)```.*?```")
	inlineCode = regexp.MustCompile("`([^`]*)`")
)

// Result holds everything extracted from one Markdown file.
type Result struct {
	NoteID      string
	Title       string
	Tags        []string
	Links       []string // wikilink targets in order of first appearance
	Frontmatter map[string]string
	Body        string // raw Markdown body, frontmatter removed
}

// Parse extracts the structured view from raw Markdown bytes. vaultPath is
// the file's path relative to the vault root; the note ID is derived from it.
func Parse(vaultPath string, data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	return &Result{
		NoteID:      NoteID(vaultPath),
		Title:       deriveTitle(fm, body, vaultPath),
		Tags:        extractTags(body, fm),
		Links:       extractLinks(body),
		Frontmatter: fm,
		Body:        body,
	}, nil
}

// NoteID derives the stable note identifier from a vault-relative path:
// the path with its extension dropped, slash-separated.
func NoteID(vaultPath string) string {
	p := path.Clean(strings.ReplaceAll(vaultPath, "\\", "/"))
	return strings.TrimSuffix(p, path.Ext(p))
}

// PlainText strips structural Markdown from a body: headings, emphasis,
// code fences, inline code markers, and link syntax (keeping link text and
// wikilink targets). Retrieval tools hand this form to the LLM.
func PlainText(body string) string {
	s := codeFence.ReplaceAllStringFunc(body, func(block string) string {
		block = strings.TrimPrefix(block, "```")
		if i := strings.Index(block, "\n"); i >= 0 {
			block = block[i+1:]
		}
		return strings.TrimSuffix(block, "```")
	})
	s = headingRe.ReplaceAllString(s, "")
	s = wikilinkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.Trim(m, "[]")
		if i := strings.Index(inner, "|"); i >= 0 {
			return inner[i+1:] // alias text
		}
		return inner
	})
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = emphasisRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Missing or invalid frontmatter is not an error; the
// whole content becomes the body.
func splitFrontmatter(data []byte) (map[string]string, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var raw map[string]any
	if err := yaml.Unmarshal(yamlBlock, &raw); err != nil {
		return nil, string(data)
	}

	return coerceFrontmatter(raw), body
}

// coerceFrontmatter flattens YAML values into the string→string mapping the
// graph store holds. Scalars are formatted; sequences are comma-joined;
// nested mappings are dropped.
func coerceFrontmatter(raw map[string]any) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				} else {
					parts = append(parts, fmt.Sprint(item))
				}
			}
			out[k] = strings.Join(parts, ",")
		case map[string]any:
			// Nested structures have no string representation worth keeping.
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// extractLinks returns deduplicated wikilink targets in order of first
// appearance, normalising [[Target|Alias]] to Target.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" field and inline
// #tags in the body, deduplicated, frontmatter first.
func extractTags(body string, fm map[string]string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	if fm != nil {
		for _, t := range strings.Split(fm["tags"], ",") {
			add(t)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise the file name without extension.
func deriveTitle(fm map[string]string, body, vaultPath string) string {
	if t := fm["title"]; t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return path.Base(NoteID(vaultPath))
}
