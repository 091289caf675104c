package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsbot/slack"
	"newsbot/spamfilter"
	"newsbot/types"
)

const summaryUnavailable = "요약 생성 실패 (요약기 미설정 또는 요청 실패)"

// DeliveredSource lists articles successfully delivered in [from, to)
type DeliveredSource interface {
	DeliveredArticles(ctx context.Context, from, to time.Time) ([]types.Article, error)
}

// Sender delivers the report message
type Sender interface {
	Send(ctx context.Context, ch types.Channel, msg *slack.Message) slack.Result
}

// Report is the daily delivery report
type Report struct {
	Date      string         `json:"date"`
	Delivered int            `json:"delivered"`
	Summary   string         `json:"summary,omitempty"`
	Keywords  []KeywordCount `json:"keywords"`
	Sent      bool           `json:"sent"`
}

// Reporter builds and sends the daily report
type Reporter struct {
	source     DeliveredSource
	summarizer Summarizer
	sender     Sender
	channel    types.Channel
	loc        *time.Location
	stopwords  map[string]struct{}
	logger     *slog.Logger
}

// NewReporter creates a reporter. summarizer may be nil; loc defaults to UTC.
func NewReporter(source DeliveredSource, summarizer Summarizer, sender Sender, channel types.Channel, loc *time.Location, logger *slog.Logger) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		source:     source,
		summarizer: summarizer,
		sender:     sender,
		channel:    channel,
		loc:        loc,
		stopwords:  spamfilter.StopwordSet(spamfilter.DefaultStopwords, ReportStopwords),
		logger:     logger,
	}
}

// Run builds the report for day and sends it. Days without deliveries are skipped.
func (r *Reporter) Run(ctx context.Context, day time.Time) error {
	_, err := r.Send(ctx, day)
	return err
}

// Send builds the report for day and delivers it, returning what was built
func (r *Reporter) Send(ctx context.Context, day time.Time) (*Report, error) {
	report, err := r.Build(ctx, day)
	if err != nil {
		return nil, err
	}
	if report.Delivered == 0 {
		r.logger.Info("summary: no deliveries, skipping report", "date", report.Date)
		return report, nil
	}

	result := r.sender.Send(ctx, r.channel, r.Message(report))
	if !result.Success {
		return report, fmt.Errorf("summary: report delivery failed with status %d after %d attempts", result.HTTPStatus, result.Attempts)
	}
	report.Sent = true
	r.logger.Info("summary: daily report sent", "date", report.Date, "delivered", report.Delivered)
	return report, nil
}

// Build collects the day's deliveries, keywords and summary
func (r *Reporter) Build(ctx context.Context, day time.Time) (*Report, error) {
	d := day.In(r.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
	to := from.AddDate(0, 0, 1)

	articles, err := r.source.DeliveredArticles(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("summary: load delivered articles: %w", err)
	}

	report := &Report{Date: from.Format(time.DateOnly), Delivered: len(articles)}
	if len(articles) == 0 {
		return report, nil
	}

	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}
	report.Keywords = TopKeywords(titles, DefaultTopN, r.stopwords)

	if r.summarizer != nil {
		text, err := r.summarizer.Summarize(ctx, BuildPrompt(articles))
		if err != nil {
			r.logger.Error("summary: summarizer failed", "error", err)
		} else {
			report.Summary = text
		}
	}
	return report, nil
}

// Message renders the report as Block Kit
func (r *Reporter) Message(report *Report) *slack.Message {
	summary := report.Summary
	if summary == "" {
		summary = summaryUnavailable
	}

	keywords := "키워드 없음"
	if len(report.Keywords) > 0 {
		lines := make([]string, len(report.Keywords))
		for i, k := range report.Keywords {
			lines[i] = fmt.Sprintf("%d. %s (%d회)", i+1, k.Keyword, k.Count)
		}
		keywords = strings.Join(lines, "\n")
	}

	return slack.NewMessage(fmt.Sprintf("일일 뉴스 발송 리포트 (%s)", report.Date)).
		Header(fmt.Sprintf("📊 일일 뉴스 발송 리포트 (%s)", report.Date)).
		Section(slack.MarkdownText(fmt.Sprintf("✅ *발송 건수:* %d건", report.Delivered))).
		Section(slack.MarkdownText("📝 *요약:*\n" + slack.EscapeMarkdown(summary))).
		Section(slack.MarkdownText(fmt.Sprintf("🔑 *TOP %d 키워드:*\n%s", DefaultTopN, slack.EscapeMarkdown(keywords)))).
		Divider()
}
