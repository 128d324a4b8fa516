package connectors

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	blockTags = map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"pre": true, "blockquote": true, "ul": true, "ol": true, "hr": true,
	}
	skipTags = map[string]bool{"script": true, "style": true, "head": true}

	spaceRun   = regexp.MustCompile(`[ \t\f\r]+`)
	breakRun   = regexp.MustCompile(`\n{3,}`)
	spaceBreak = regexp.MustCompile(` ?\n ?`)
)

// HTMLToText flattens HTML or Confluence storage markup into plain text
// with blank lines between blocks.
func HTMLToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return normalize(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				skip++
			}
			if blockTags[tag] {
				b.WriteString("\n\n")
			}
			if tag == "td" || tag == "th" {
				b.WriteString(" ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] && skip > 0 {
				skip--
			}
			if blockTags[tag] {
				b.WriteString("\n\n")
			}
		}
	}
}

func normalize(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	s = spaceBreak.ReplaceAllString(s, "\n")
	s = breakRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
