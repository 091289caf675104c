package rssfeeds

import (
	"html"
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanText strips HTML tags, unescapes entities and collapses whitespace.
// Backticks become apostrophes so the text is safe inside Slack mrkdwn.
func CleanText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "`", "'")
	return strings.Join(strings.Fields(s), " ")
}
