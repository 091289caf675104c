package summary

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsbot/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const (
	DefaultCohereModel = "command-r"
	maxPromptArticles  = 100
	summaryPreamble    = "당신은 뉴스 요약 전문가입니다. 여러 뉴스 제목과 내용을 분석하여 간결하고 명확한 요약을 작성합니다."
)

// Summarizer condenses a prompt into a short summary
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// CohereSummarizer implements Summarizer with the Cohere chat API
type CohereSummarizer struct {
	client *cohereclient.Client
	model  string
}

// NewCohereSummarizer creates a summarizer. An empty model selects DefaultCohereModel.
func NewCohereSummarizer(apiKey, model string) *CohereSummarizer {
	if model == "" {
		model = DefaultCohereModel
	}
	// Force HTTP/1.1 to avoid HTTP/2 protocol errors
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereSummarizer{client: client, model: model}
}

// Summarize sends the prompt and returns the trimmed reply
func (c *CohereSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     prompt,
		Model:       cohere.String(c.model),
		Preamble:    cohere.String(summaryPreamble),
		Temperature: cohere.Float64(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("cohere chat returned an empty summary")
	}
	return strings.TrimSpace(resp.Text), nil
}

// BuildPrompt lists up to 100 delivered articles and asks for a short summary
func BuildPrompt(articles []types.Article) string {
	var b strings.Builder
	b.WriteString("다음은 오늘 발송된 뉴스 목록입니다. 이 뉴스들의 공통 주제와 핵심 내용을 간결하게 요약해주세요.\n\n")
	b.WriteString("뉴스 목록:\n")
	for i, a := range articles {
		if i == maxPromptArticles {
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, a.Title)
		if s := strings.TrimSpace(a.Summary); s != "" {
			fmt.Fprintf(&b, " - %s", s)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\n요약 요청 사항:\n- 5-10문장으로 간결하게 작성\n- 주요 키워드와 핵심 내용 위주로 요약\n- 500자 이내로 작성")
	return b.String()
}
