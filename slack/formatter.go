package slack

import (
	"fmt"
	"strings"
	"time"

	"newsbot/types"
)

const (
	NoContent        = "내용없음"
	UnknownPublisher = "(알수없음)"
)

var koreanWeekdays = [...]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

// Formatter renders articles into Block Kit messages
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a formatter rendering times in loc (UTC when nil)
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Article builds the delivery message: linked title, description, a
// "time | publisher" context line and a divider.
func (f *Formatter) Article(ch types.Channel, a *types.Article) *Message {
	title := a.Title
	if ch.Prefix != "" {
		title = ch.Prefix + " " + title
	}
	description := strings.TrimSpace(a.Summary)
	if description == "" {
		description = NoContent
	}
	publisher := a.Publisher
	if publisher == "" {
		publisher = UnknownPublisher
	}

	return NewMessage(title).
		Section(MarkdownText("*" + Link(a.Link, title) + "*")).
		Section(PlainTextOf(description)).
		Context(PlainTextOf(f.FormatTime(a.PublishedAt) + " | " + publisher)).
		Divider()
}

// FormatTime renders t as e.g. "2024년 5월 1일 (수요일) 오후 3:04:05"
func (f *Formatter) FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.In(f.loc)
	meridiem := "오전"
	hour := t.Hour()
	if hour >= 12 {
		meridiem = "오후"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d년 %d월 %d일 (%s) %s %d:%02d:%02d",
		t.Year(), int(t.Month()), t.Day(), koreanWeekdays[t.Weekday()],
		meridiem, hour, t.Minute(), t.Second())
}
