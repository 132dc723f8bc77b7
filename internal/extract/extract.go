// Package extract turns decoded HTML into readable text.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content is the readable part of a page.
type Content struct {
	Title string
	Text  string
}

// Extract parses html and returns its title and visible text. Script, style
// and template contents are dropped and runs of blank lines collapse to one.
func Extract(html string) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
			title = strings.TrimSpace(og)
		}
	}

	doc.Find("script, style, noscript, template, head").Remove()
	return Content{Title: title, Text: collapseBlankLines(doc.Text())}, nil
}

// Text returns only the visible text of html.
func Text(html string) (string, error) {
	c, err := Extract(html)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// Title returns the page title, or "" when html has none or cannot be parsed.
func Title(html string) string {
	c, err := Extract(html)
	if err != nil {
		return ""
	}
	return c.Title
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
