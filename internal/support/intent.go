package support

import (
	"regexp"
	"strings"

	"shopdesk-backend/internal/types"
)

// History windows used by the two classification overrides.
const (
	orderFlowTurns  = 6
	supportCueTurns = 3
)

var (
	orderIDPattern = regexp.MustCompile(`(?i)\bORD-\d{4,}\b`)
	emailPattern   = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

	supportCuePattern = regexp.MustCompile(`\b(support|issue|problem|question|assist|need|want|still|again|also|it|that|this|yes|yeah|yep|ok|okay|sure|please|email|id|number)\b`)

	orderFlowSignals = []*regexp.Regexp{
		regexp.MustCompile(`\b(track|status|order)`),
		regexp.MustCompile(`order (id|number)`),
		regexp.MustCompile(`email.{0,40}checkout|checkout.{0,40}email`),
		orderIDPattern,
	}
)

type intentRule struct {
	pattern *regexp.Regexp
	intent  Intent
	policy  PolicyKey
}

// intentRules are evaluated top to bottom over the lower-cased message; first match wins.
var intentRules = []intentRule{
	{regexp.MustCompile(`\b(return|refund|exchange)`), IntentPolicyInfo, PolicyReturns},
	{regexp.MustCompile(`\b(ship|shipping|delivery)`), IntentPolicyInfo, PolicyShipping},
	{regexp.MustCompile(`\b(privacy|gdpr|data)\b`), IntentPolicyInfo, PolicyPrivacy},
	{regexp.MustCompile(`\b(terms|service|conditions)\b`), IntentPolicyInfo, PolicyTerms},
	{regexp.MustCompile(`\b(order|status|track)`), IntentOrderStatus, ""},
	{orderIDPattern, IntentOrderStatus, ""},
	{regexp.MustCompile(`\b(recommend|suggest|looking for|find)`), IntentRecommendations, ""},
}

// Classify maps a message and the caller's recent history to an intent.
func Classify(message string, cc *types.ChatContext) Intent {
	intent := classifyText(message)
	turns := cc.Turns()

	if ExtractEmail(message) != "" && inOrderFlow(lastTurns(turns, orderFlowTurns)) {
		return IntentOrderStatus
	}

	if intent == IntentNone {
		return classifyText(widenedText(message, turns))
	}
	return intent
}

// widenedText is the text a follow-up is classified on: the message itself, or,
// for a cue-word follow-up with no intent of its own, the recent user turns plus
// the message.
func widenedText(message string, turns []types.ChatTurn) string {
	if classifyText(message) != IntentNone || !HasSupportCue(message) {
		return message
	}
	users := lastUserTurns(turns, supportCueTurns)
	if len(users) == 0 {
		return message
	}
	return strings.Join(append(users, message), "\n")
}

func classifyText(text string) Intent {
	m := strings.ToLower(text)
	for _, r := range intentRules {
		if r.pattern.MatchString(m) {
			return r.intent
		}
	}
	return IntentNone
}

// PolicyKeyFor picks the policy document a message refers to, using the
// classification precedence and defaulting to the FAQ.
func PolicyKeyFor(message string) PolicyKey {
	m := strings.ToLower(message)
	for _, r := range intentRules {
		if r.policy != "" && r.pattern.MatchString(m) {
			return r.policy
		}
	}
	return PolicyFAQ
}

// HasSupportCue reports whether the message carries one of the broader follow-up cues.
func HasSupportCue(message string) bool {
	return supportCuePattern.MatchString(strings.ToLower(message))
}

// ExtractOrderID returns the first order ID in canonical upper-case form.
func ExtractOrderID(message string) string {
	return strings.ToUpper(orderIDPattern.FindString(message))
}

func ExtractEmail(message string) string {
	return emailPattern.FindString(message)
}

func inOrderFlow(turns []types.ChatTurn) bool {
	for _, t := range turns {
		c := strings.ToLower(t.Content)
		for _, sig := range orderFlowSignals {
			if sig.MatchString(c) {
				return true
			}
		}
	}
	return false
}

func lastTurns(turns []types.ChatTurn, n int) []types.ChatTurn {
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

func lastUserTurns(turns []types.ChatTurn, n int) []string {
	out := make([]string, 0, n)
	for i := len(turns) - 1; i >= 0 && len(out) < n; i-- {
		if turns[i].Role == types.RoleUser && strings.TrimSpace(turns[i].Content) != "" {
			out = append(out, turns[i].Content)
		}
	}
	// restore chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
