package support

import (
	"context"

	"shopdesk-backend/internal/types"
)

type Intent string

const (
	IntentPolicyInfo      Intent = "policy_info"
	IntentOrderStatus     Intent = "order_status"
	IntentRecommendations Intent = "recommendations"
	IntentNone            Intent = "none"
)

// Reply types beyond the structured intents.
const (
	ReplyModel    = "model"
	ReplyFallback = "fallback"
)

type PolicyKey string

const (
	PolicyReturns  PolicyKey = "returns"
	PolicyShipping PolicyKey = "shipping"
	PolicyPrivacy  PolicyKey = "privacy"
	PolicyTerms    PolicyKey = "terms"
	PolicyFAQ      PolicyKey = "faq"
)

// PolicyKeys is the closed set of policy documents.
var PolicyKeys = []PolicyKey{PolicyReturns, PolicyShipping, PolicyPrivacy, PolicyTerms, PolicyFAQ}

type TopicLabel string

const (
	TopicSwitch   TopicLabel = "switch"
	TopicContinue TopicLabel = "continue"
	TopicUnknown  TopicLabel = "unknown"
)

// StructuredReply is a deterministic answer built from store data.
type StructuredReply struct {
	Type     Intent `json:"type"`
	Response string `json:"response"`
}

// Reply is what the pipeline hands back to delivery.
type Reply struct {
	Type     string
	Response string
}

// RecommendationQuery is derived from the user's message.
type RecommendationQuery struct {
	FreeText string
	Category string
	// Budget is zero when the message names none.
	Budget float64
	Limit  int
}

// PolicyGateway reads the fixed store policy documents.
type PolicyGateway interface {
	Get(key PolicyKey) (types.Policy, bool)
}

// Recommender returns catalog products ordered best first.
type Recommender interface {
	Recommend(ctx context.Context, q RecommendationQuery) ([]types.Product, error)
	Categories() []string
}

// Generator is the generative text backend. Calls either return text or fail;
// callers decide how to degrade.
type Generator interface {
	Generate(ctx context.Context, history []types.ChatTurn, message string) (string, error)
	// Complete bounds its own call time; callers pass their context through.
	Complete(ctx context.Context, prompt string) (string, error)
}
