package summary

import (
	"sort"

	"newsbot/spamfilter"
)

// DefaultTopN is the number of keywords listed in the daily report
const DefaultTopN = 20

// ReportStopwords are dropped from report keywords on top of the spam filter's list
var ReportStopwords = []string{
	"위해", "통해", "대해", "따르면", "따라", "위한", "통한", "대한", "하다", "있다", "되다",
}

// KeywordCount is one keyword and the number of titles that contain it
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// TopKeywords counts keywords across titles with the spam filter's tokenizer
// and returns the n most frequent, ties broken alphabetically.
func TopKeywords(titles []string, n int, stopwords map[string]struct{}) []KeywordCount {
	freq := make(map[string]int)
	for _, title := range titles {
		for _, token := range spamfilter.Tokenize(title, stopwords) {
			freq[token]++
		}
	}

	out := make([]KeywordCount, 0, len(freq))
	for k, c := range freq {
		out = append(out, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
