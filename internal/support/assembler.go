package support

import (
	"fmt"
	"strings"

	"shopdesk-backend/internal/prompts"
	"shopdesk-backend/internal/types"
)

const viewedSummaryLimit = 5

// BuildHistory prepends the assistant preamble to the caller's turns. Any role
// other than user is treated as the assistant.
func BuildHistory(pack *prompts.Pack, turns []types.ChatTurn) []types.ChatTurn {
	out := make([]types.ChatTurn, 0, len(turns)+2)
	out = append(out, types.ChatTurn{Role: types.RoleSystem, Content: pack.System})
	if pack.Greeting != "" {
		out = append(out, types.ChatTurn{Role: types.RoleAssistant, Content: pack.Greeting})
	}
	for _, t := range turns {
		role := types.RoleAssistant
		if t.Role == types.RoleUser {
			role = types.RoleUser
		}
		out = append(out, types.ChatTurn{Role: role, Content: t.Content})
	}
	return out
}

// BuildMessage produces the final user message for the generator. Without a
// context object the message is passed through untouched.
func BuildMessage(pack *prompts.Pack, message string, cc *types.ChatContext, topic TopicLabel) string {
	if cc == nil {
		return message
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- Cart items: %s\n", cartSummary(cc.Cart))
	fmt.Fprintf(&b, "- Categories: %s\n", strings.Join(cc.Categories, ", "))
	fmt.Fprintf(&b, "- Product count: %d\n", cc.ProductCount)
	if page := strings.TrimSpace(cc.Page); page != "" {
		fmt.Fprintf(&b, "- Current page: %s\n", page)
	}
	if viewed := viewedSummary(cc.Viewed); viewed != "" {
		fmt.Fprintf(&b, "- Recently viewed: %s\n", viewed)
	}
	b.WriteString("\n")
	if topic == TopicSwitch && pack.CapabilitiesDirective != "" {
		b.WriteString(pack.CapabilitiesDirective)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}

func cartSummary(items []types.CartItem) string {
	parts := make([]string, 0, len(items))
	for _, i := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", i.Title, i.Qty))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func viewedSummary(items []types.ViewedItem) string {
	if len(items) > viewedSummaryLimit {
		items = items[len(items)-viewedSummaryLimit:]
	}
	titles := make([]string, 0, len(items))
	for _, v := range items {
		if v.Title != "" {
			titles = append(titles, v.Title)
		}
	}
	return strings.Join(titles, ", ")
}
