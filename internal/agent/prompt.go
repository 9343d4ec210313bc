package agent

import (
	"fmt"
	"strings"
	"time"
)

const conversationWindow = 6

// BuildSystemPrompt returns the fixed instruction turn for a triage run. It
// takes no input on purpose: run-specific context lives in the user turn.
func BuildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the PropDesk triage agent for a property-management back office.\n")
	b.WriteString("You classify inbound tenant tickets and, when useful, look up matching contractors.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1) Use the categorize_and_triage tool for every ticket before anything else.\n")
	b.WriteString("2) Only call search_contractors for maintenance work that needs a professional.\n")
	b.WriteString("3) Base the classification strictly on the ticket content; never invent details.\n")
	b.WriteString("4) Keep summaries short and factual. Checklist items are concrete next actions for staff.\n")
	b.WriteString("5) Set requires_human_review when the message mentions legal threats, safety hazards or ambiguous intent.\n")
	b.WriteString("6) After the tools have run, reply with a one-paragraph plain-text recap for the back-office operator.\n")
	return b.String()
}

// BuildPrompt deterministically renders run parameters into the initial user
// turn. Identical params always produce identical output.
func BuildPrompt(params RunParams) string {
	var b strings.Builder

	b.WriteString("Ticket:\n")
	b.WriteString(fmt.Sprintf("- id: %s\n", params.TicketID))
	b.WriteString(fmt.Sprintf("- subject: %s\n", params.Subject))
	if strings.TrimSpace(params.Summary) != "" {
		b.WriteString(fmt.Sprintf("- summary: %s\n", params.Summary))
	}
	b.WriteString("\n")

	b.WriteString("Latest message:\n")
	writeMessage(&b, params.LastMessage)
	b.WriteString("\n")

	if len(params.Conversation) > 0 {
		window := params.Conversation
		if len(window) > conversationWindow {
			window = window[len(window)-conversationWindow:]
		}
		b.WriteString("Recent conversation (oldest first):\n")
		for _, msg := range window {
			writeMessage(&b, msg)
		}
		b.WriteString("\n")
	}

	if instructions := strings.TrimSpace(params.Instructions); instructions != "" {
		b.WriteString("Agent instructions:\n")
		b.WriteString(instructions + "\n\n")
	}

	if hint := strings.TrimSpace(params.CategoryHint); hint != "" {
		b.WriteString("Category hint: " + hint + "\n\n")
	}

	b.WriteString("Tool usage:\n")
	b.WriteString("- Call categorize_and_triage first.\n")
	b.WriteString("- Call search_contractors only after triage, and only when a contractor visit is warranted.\n")
	if ctx := params.ContractorSearch; ctx != nil {
		if pc := strings.TrimSpace(ctx.PostalCode); pc != "" {
			b.WriteString("- Default contractor search postal code: " + pc + "\n")
		}
		if sp := strings.TrimSpace(ctx.Specialty); sp != "" {
			b.WriteString("- Default contractor specialty: " + sp + "\n")
		}
	}

	return b.String()
}

func writeMessage(b *strings.Builder, msg Message) {
	meta := make([]string, 0, 4)
	if msg.Channel != "" {
		meta = append(meta, "channel="+msg.Channel)
	}
	if msg.Direction != "" {
		meta = append(meta, "direction="+msg.Direction)
	}
	if msg.Author != "" {
		meta = append(meta, "author="+msg.Author)
	}
	if !msg.SentAt.IsZero() {
		meta = append(meta, "at="+msg.SentAt.UTC().Format(time.RFC3339))
	}
	if len(meta) > 0 {
		b.WriteString("[" + strings.Join(meta, " ") + "]\n")
	}
	b.WriteString(strings.TrimSpace(msg.Body) + "\n")
}
