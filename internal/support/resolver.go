package support

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"shopdesk-backend/internal/logging"
	"shopdesk-backend/internal/types"
)

const (
	recommendationLimit = 5
	trackingLink        = "[order tracking page](/orders/track)"
)

var budgetPattern = regexp.MustCompile(`(?:[$€£]\s?)?\b(\d{2,4})\b`)

// Resolver answers structured intents from store data.
type Resolver struct {
	policies    PolicyGateway
	recommender Recommender
}

func NewResolver(policies PolicyGateway, recommender Recommender) *Resolver {
	return &Resolver{policies: policies, recommender: recommender}
}

// Resolve returns nil when the intent has no deterministic answer and the
// generative backend should take over.
func (r *Resolver) Resolve(ctx context.Context, intent Intent, message string, cc *types.ChatContext) (*StructuredReply, error) {
	switch intent {
	case IntentPolicyInfo:
		return r.resolvePolicy(message, cc)
	case IntentOrderStatus:
		return &StructuredReply{Type: IntentOrderStatus, Response: resolveOrder(message, cc.OrderList())}, nil
	case IntentRecommendations:
		return r.resolveRecommendations(ctx, message, cc)
	default:
		return nil, nil
	}
}

// resolvePolicy picks the document from the same text the classifier used, so a
// bare "yes please" after a returns question still answers with returns.
func (r *Resolver) resolvePolicy(message string, cc *types.ChatContext) (*StructuredReply, error) {
	key := PolicyKeyFor(widenedText(message, cc.Turns()))
	p, ok := r.policies.Get(key)
	if !ok {
		return nil, errors.Errorf("policy %q not available", key)
	}
	text := fmt.Sprintf("%s\n\n%s\n\nRead the full policy: [%s](/policies/%s)", p.Title, p.Content, p.Title, key)
	return &StructuredReply{Type: IntentPolicyInfo, Response: text}, nil
}

func resolveOrder(message string, orders []types.Order) string {
	if id := ExtractOrderID(message); id != "" {
		for _, o := range orders {
			if strings.ToUpper(strings.TrimSpace(o.ID)) == id {
				return formatOrderSummary(id, o)
			}
		}
		return fmt.Sprintf("I couldn't find an order with ID %s. Please double-check the ID, or look it up with the email used at checkout on the %s.", id, trackingLink)
	}

	if email := ExtractEmail(message); email != "" {
		matches := ordersForEmail(orders, email)
		if len(matches) == 0 {
			return fmt.Sprintf("I couldn't find any orders for %s. Make sure it's the email you used at checkout, or try the %s.", email, trackingLink)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Here are the orders for %s:\n", email)
		for _, o := range matches {
			id := strings.ToUpper(strings.TrimSpace(o.ID))
			fmt.Fprintf(&b, "\n- %s — %s — %s — [View order](/orders/%s)", id, o.Status, formatMoney(o.Total), id)
		}
		return b.String()
	}

	return fmt.Sprintf("I can help you track your order. Please share your order ID (for example ORD-1234) or the email you used at checkout. You can also use the %s.", trackingLink)
}

func formatOrderSummary(id string, o types.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n", id)
	fmt.Fprintf(&b, "Status: %s\n", o.Status)
	fmt.Fprintf(&b, "Total: %s\n", formatMoney(o.Total))
	fmt.Fprintf(&b, "Placed: %s\n\n", formatDate(o.CreatedAt))
	fmt.Fprintf(&b, "[View order details](/orders/%s)", id)
	return b.String()
}

// ordersForEmail returns the caller's orders for email, newest first.
func ordersForEmail(orders []types.Order, email string) []types.Order {
	out := make([]types.Order, 0, len(orders))
	for _, o := range orders {
		if o.Email != "" && strings.EqualFold(strings.TrimSpace(o.Email), email) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := parseTime(out[i].CreatedAt), parseTime(out[j].CreatedAt)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

func (r *Resolver) resolveRecommendations(ctx context.Context, message string, cc *types.ChatContext) (*StructuredReply, error) {
	categories := cc.CategoryList()
	if len(categories) == 0 && r.recommender != nil {
		categories = r.recommender.Categories()
	}
	q := ParseRecommendationQuery(message, categories)

	var products []types.Product
	if r.recommender != nil {
		var err error
		products, err = r.recommender.Recommend(ctx, q)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Warn("recommender failed, asking a clarifying question instead")
			products = nil
		}
	}
	if len(products) == 0 {
		return &StructuredReply{
			Type:     IntentRecommendations,
			Response: "I couldn't find a good match yet. What kind of product are you looking for, and do you have a budget in mind? You can also [browse all products](/products).",
		}, nil
	}
	if len(products) > recommendationLimit {
		products = products[:recommendationLimit]
	}

	var b strings.Builder
	b.WriteString("Here are a few picks you might like:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "\n- [%s](/products/%s) — %s", p.Title, p.Slug, formatMoney(p.Price))
	}
	return &StructuredReply{Type: IntentRecommendations, Response: b.String()}, nil
}

// ParseRecommendationQuery extracts budget and category hints from a message.
func ParseRecommendationQuery(message string, categories []string) RecommendationQuery {
	q := RecommendationQuery{FreeText: message, Limit: recommendationLimit}
	if m := budgetPattern.FindStringSubmatch(message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			q.Budget = float64(n)
		}
	}
	lower := strings.ToLower(message)
	for _, c := range categories {
		if c != "" && strings.Contains(lower, strings.ToLower(c)) {
			q.Category = c
			break
		}
	}
	return q
}

func formatMoney(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func formatDate(raw string) string {
	t := parseTime(raw)
	if t.IsZero() {
		return raw
	}
	return t.Format("Jan 2, 2006")
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
