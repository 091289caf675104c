package slack

import "strings"

// TextType is a Block Kit text object type
type TextType string

const (
	PlainText TextType = "plain_text"
	Markdown  TextType = "mrkdwn"
)

// BlockType is a Block Kit layout block type
type BlockType string

const (
	SectionBlock BlockType = "section"
	ContextBlock BlockType = "context"
	DividerBlock BlockType = "divider"
	HeaderBlock  BlockType = "header"
)

// Text is a Block Kit text object
type Text struct {
	Type  TextType `json:"type"`
	Text  string   `json:"text"`
	Emoji bool     `json:"emoji,omitempty"`
}

// Block is a Block Kit layout block. Only the fields valid for Type are set.
type Block struct {
	Type     BlockType `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	Elements []Text    `json:"elements,omitempty"`
}

// Message is an incoming-webhook payload
type Message struct {
	// Text is the notification fallback shown where blocks are not rendered
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// NewMessage starts a message with the given fallback text
func NewMessage(fallback string) *Message {
	return &Message{Text: fallback}
}

// MarkdownText builds an mrkdwn text object
func MarkdownText(s string) Text {
	return Text{Type: Markdown, Text: s}
}

// PlainTextOf builds a plain_text text object with emoji rendering enabled
func PlainTextOf(s string) Text {
	return Text{Type: PlainText, Text: s, Emoji: true}
}

// Header appends a header block
func (m *Message) Header(s string) *Message {
	t := PlainTextOf(s)
	m.Blocks = append(m.Blocks, Block{Type: HeaderBlock, Text: &t})
	return m
}

// Section appends a section block
func (m *Message) Section(t Text) *Message {
	m.Blocks = append(m.Blocks, Block{Type: SectionBlock, Text: &t})
	return m
}

// Context appends a context block
func (m *Message) Context(elements ...Text) *Message {
	m.Blocks = append(m.Blocks, Block{Type: ContextBlock, Elements: elements})
	return m
}

// Divider appends a divider block
func (m *Message) Divider() *Message {
	m.Blocks = append(m.Blocks, Block{Type: DividerBlock})
	return m
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeMarkdown escapes the control characters of Slack mrkdwn
func EscapeMarkdown(s string) string {
	return mrkdwnEscaper.Replace(s)
}

// Link renders an mrkdwn link. The URL keeps its own characters; only the
// label is escaped, and a "|" in the label would end the label early.
func Link(url, label string) string {
	label = strings.ReplaceAll(EscapeMarkdown(label), "|", "｜")
	return "<" + url + "|" + label + ">"
}
