package llm

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

//go:embed prompts/reply_v1.txt
var replyPromptV1 string

// ReplyPromptVersion identifies the reply prompt shipped in this build.
const ReplyPromptVersion = "reply_v1"

// ErrEmptyReply means the model answered without reply text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// ReplyInput is the inquiry context given to the model.
type ReplyInput struct {
	Category     string
	Keywords     []string
	CustomerName string
	OrderNumber  string
	ProductName  string
	Text         string
	MaxLength    int
}

// Reply is the parsed model output. Confidence is nil when the model omitted it.
type Reply struct {
	Text       string
	Confidence *float64
}

// BuildReplyMessages renders the chat messages for drafting a reply.
func BuildReplyMessages(in ReplyInput) []Message {
	maxLength := in.MaxLength
	if maxLength <= 0 {
		maxLength = 1000
	}
	system := strings.NewReplacer("{{MAX_LENGTH}}", strconv.Itoa(maxLength)).Replace(replyPromptV1)

	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", orNA(in.Category))
	fmt.Fprintf(&b, "Keywords: %s\n", orNA(strings.Join(in.Keywords, ", ")))
	fmt.Fprintf(&b, "Customer name: %s\n", orNA(in.CustomerName))
	fmt.Fprintf(&b, "Order number: %s\n", orNA(in.OrderNumber))
	fmt.Fprintf(&b, "Product: %s\n", orNA(in.ProductName))
	fmt.Fprintf(&b, "\nInquiry:\n%s", in.Text)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}

// ParseReply decodes the model's JSON answer.
func ParseReply(raw string) (Reply, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload struct {
		Reply      string          `json:"reply"`
		Confidence json.RawMessage `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	text := strings.TrimSpace(payload.Reply)
	if text == "" {
		return Reply{}, ErrEmptyReply
	}
	out := Reply{Text: text}
	if len(payload.Confidence) > 0 && string(payload.Confidence) != "null" {
		var v float64
		if err := json.Unmarshal(payload.Confidence, &v); err != nil {
			// Some models quote numbers.
			var s string
			if json.Unmarshal(payload.Confidence, &s) != nil {
				return Reply{}, fmt.Errorf("decode reply confidence: %w", err)
			}
			if v, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return Reply{}, fmt.Errorf("decode reply confidence: %w", err)
			}
		}
		v = math.Max(0, math.Min(100, v))
		out.Confidence = &v
	}
	return out, nil
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}
