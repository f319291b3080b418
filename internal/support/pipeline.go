package support

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"shopdesk-backend/internal/logging"
	"shopdesk-backend/internal/metrics"
	"shopdesk-backend/internal/prompts"
	"shopdesk-backend/internal/types"
)

// ErrBackendUnavailable is returned by Generate paths when no generator is configured.
var ErrBackendUnavailable = errors.New("generative backend not configured")

// Pipeline routes one chat message either to a structured answer or to the
// generative backend with assembled context. It keeps no per-conversation state.
type Pipeline struct {
	resolver *Resolver
	topics   *TopicClassifier
	gen      Generator
	pack     *prompts.Pack
}

// NewPipeline accepts a nil generator; model-bound replies then use the static fallback.
func NewPipeline(resolver *Resolver, topics *TopicClassifier, gen Generator, pack *prompts.Pack) *Pipeline {
	if pack == nil {
		pack = prompts.Default()
	}
	return &Pipeline{resolver: resolver, topics: topics, gen: gen, pack: pack}
}

// Structured classifies the message and returns the deterministic answer, or nil
// when the message should go to the generative backend.
func (p *Pipeline) Structured(ctx context.Context, message string, cc *types.ChatContext) (*StructuredReply, error) {
	intent := Classify(message, cc)
	logging.FromContext(ctx).WithField("intent", intent).Debug("classified message")
	if intent == IntentNone {
		return nil, nil
	}
	return p.resolver.Resolve(ctx, intent, message, cc)
}

// Generate runs topic detection and context assembly, then calls the backend once.
func (p *Pipeline) Generate(ctx context.Context, message string, cc *types.ChatContext) (string, error) {
	if p.gen == nil {
		return "", ErrBackendUnavailable
	}
	topic := TopicUnknown
	if !HasSupportCue(message) {
		topic = p.topics.Classify(ctx, message, cc.Turns())
	}
	history := BuildHistory(p.pack, cc.Turns())
	text, err := p.gen.Generate(ctx, history, BuildMessage(p.pack, message, cc, topic))
	if err != nil {
		metrics.RecordBackendFailure("generate")
		return "", errors.Wrap(err, "generate reply")
	}
	return text, nil
}

// Reply is the buffered path: structured answer, model answer, or static fallback.
func (p *Pipeline) Reply(ctx context.Context, message string, cc *types.ChatContext) (Reply, error) {
	sr, err := p.Structured(ctx, message, cc)
	if err != nil {
		return Reply{}, err
	}
	if sr != nil {
		return Reply{Type: string(sr.Type), Response: sr.Response}, nil
	}

	text, err := p.Generate(ctx, message, cc)
	if err != nil || strings.TrimSpace(text) == "" {
		log := logging.FromContext(ctx)
		if err != nil {
			log = log.WithError(err)
		}
		log.Warn("generative backend unavailable, sending fallback reply")
		return Reply{Type: ReplyFallback, Response: p.pack.FallbackReply}, nil
	}
	return Reply{Type: ReplyModel, Response: text}, nil
}

// Prepare is the streaming path: it returns the full text to emit. Backend
// failures are returned as errors so the stream can end with an error fragment.
func (p *Pipeline) Prepare(ctx context.Context, message string, cc *types.ChatContext) (Reply, error) {
	sr, err := p.Structured(ctx, message, cc)
	if err != nil {
		return Reply{}, err
	}
	if sr != nil {
		return Reply{Type: string(sr.Type), Response: sr.Response}, nil
	}
	text, err := p.Generate(ctx, message, cc)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Type: ReplyModel, Response: text}, nil
}
