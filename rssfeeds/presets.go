package rssfeeds

import "strings"

// FeedPresets maps short names usable as a channel feed_url to feed URLs
var FeedPresets = map[string]string{
	"yna":      "https://www.yna.co.kr/rss/news.xml",
	"yna-econ": "https://www.yna.co.kr/rss/economy.xml",
	"hani":     "https://www.hani.co.kr/rss/",
	"khan":     "https://www.khan.co.kr/rss/rssdata/total_news.xml",
	"mk":       "https://www.mk.co.kr/rss/30000001/",
	"hn":       "https://hnrss.org/newest",
}

// ResolveFeedURL returns the preset URL for name, or name itself when it is not a preset
func ResolveFeedURL(name string) string {
	if url, ok := FeedPresets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return url
	}
	return name
}
