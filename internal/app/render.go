package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PrettyJSON formats raw JSON with two-space indentation. Invalid input is
// returned as sanitized text.
func PrettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return SanitizeText(string(raw))
	}
	return SanitizeText(buf.String())
}

// MarkupToText converts server-rendered markup into plain text. Tags are
// never interpreted: scripts and styles are dropped, block elements become
// line breaks and list items get a bullet.
func MarkupToText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	if !strings.ContainsAny(markup, "<&") {
		return SanitizeText(markup)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return SanitizeText(markup)
	}

	doc.Find("script, style, iframe, object, embed, noscript, template").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(textNode("\n"))
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependNodes(textNode("• "))
	})
	doc.Find("p, div, li, tr, section, article, h1, h2, h3, h4, h5, h6, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(textNode("\n"))
	})

	return SanitizeText(doc.Find("body").Text())
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// SanitizeText removes terminal control sequences and collapses blank lines.
func SanitizeText(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(cleaned, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Section is a titled block of plain text.
type Section struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Pane is the analysis pane of the activity client. Every field is plain text.
type Pane struct {
	Text        string    `json:"text"`
	Sections    []Section `json:"sections,omitempty"`
	Suggestions []string  `json:"suggestions"`
}

// NewPane builds a pane from server content, converting markup to text.
func NewPane(formatted string, sections []Section, suggestions []string) Pane {
	p := Pane{
		Text:        MarkupToText(formatted),
		Suggestions: make([]string, 0, len(suggestions)),
	}
	for _, s := range sections {
		p.Sections = append(p.Sections, Section{
			Title: SanitizeText(s.Title),
			Text:  MarkupToText(s.Text),
		})
	}
	for _, s := range suggestions {
		if s = SanitizeText(s); s != "" {
			p.Suggestions = append(p.Suggestions, s)
		}
	}
	return p
}

// Render returns the pane body as text, without suggestions.
func (p Pane) Render() string {
	var sb strings.Builder
	sb.WriteString(p.Text)
	for _, s := range p.Sections {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if s.Title != "" {
			sb.WriteString(s.Title + "\n")
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}
