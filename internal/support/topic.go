package support

import (
	"context"
	"regexp"
	"strings"

	"shopdesk-backend/internal/logging"
	"shopdesk-backend/internal/metrics"
	"shopdesk-backend/internal/prompts"
	"shopdesk-backend/internal/types"
)

const topicHistoryTurns = 6

var switchHeuristic = regexp.MustCompile(`what can you do|who are you|\bhelp\b|\bmenu\b|\boptions\b`)

// TopicClassifier decides whether a message without a structured intent is the
// user starting over. It asks the generator first and falls back to a local
// keyword check whenever the generator is missing or fails.
type TopicClassifier struct {
	gen  Generator
	pack *prompts.Pack
}

// NewTopicClassifier accepts a nil generator; classification then uses the heuristic only.
func NewTopicClassifier(gen Generator, pack *prompts.Pack) *TopicClassifier {
	if pack == nil {
		pack = prompts.Default()
	}
	return &TopicClassifier{gen: gen, pack: pack}
}

func (c *TopicClassifier) Classify(ctx context.Context, message string, history []types.ChatTurn) TopicLabel {
	if c.gen == nil {
		return c.heuristic(message)
	}

	raw, err := c.gen.Complete(ctx, c.buildPrompt(message, lastTurns(history, topicHistoryTurns)))
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("topic classification failed, using keyword heuristic")
		metrics.RecordBackendFailure("classify")
		return c.heuristic(message)
	}
	label := ParseTopicLabel(raw)
	metrics.RecordTopic(string(label), "model")
	return label
}

func (c *TopicClassifier) heuristic(message string) TopicLabel {
	label := TopicUnknown
	if switchHeuristic.MatchString(strings.ToLower(message)) {
		label = TopicSwitch
	}
	metrics.RecordTopic(string(label), "heuristic")
	return label
}

func (c *TopicClassifier) buildPrompt(message string, history []types.ChatTurn) string {
	var b strings.Builder
	b.WriteString(c.pack.TopicPrompt)
	b.WriteString("\n\nRecent conversation (role: content):\n")
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range history {
		role := strings.ToUpper(t.Role)
		if role == "" {
			role = "USER"
		}
		content := strings.ReplaceAll(strings.TrimSpace(t.Content), "\n\n", "\n")
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	b.WriteString("\nLatest user message: ")
	b.WriteString(strings.TrimSpace(message))
	b.WriteString("\nLabel:")
	return b.String()
}

// ParseTopicLabel reads the first recognised label; SWITCH wins over CONTINUE.
func ParseTopicLabel(raw string) TopicLabel {
	u := strings.ToUpper(raw)
	switch {
	case strings.Contains(u, "SWITCH"):
		return TopicSwitch
	case strings.Contains(u, "CONTINUE"):
		return TopicContinue
	default:
		return TopicUnknown
	}
}
