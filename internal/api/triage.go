package api

import (
	"net/http"
	"strings"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
)

type triageResponse struct {
	Triage         *agent.TriageResult           `json:"triage,omitempty"`
	Contractors    *agent.ContractorSearchResult `json:"contractors,omitempty"`
	OutputText     string                        `json:"output_text,omitempty"`
	ToolExecutions []agent.ToolExecution         `json:"tool_executions"`
}

// triageTicket assembles RunParams from the stored ticket, its messages and
// the matching triage profile, then drives one agent run.
func (h *handler) triageTicket(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		jsonError(w, http.StatusServiceUnavailable, "triage agent is not configured")
		return
	}

	ticketID := r.PathValue("id")
	ticket, err := h.ticketRepo.Get(r.Context(), ticketID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ticket == nil {
		jsonError(w, http.StatusNotFound, "ticket not found")
		return
	}

	latest, err := h.messageRepo.Latest(r.Context(), ticketID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if latest == nil {
		jsonError(w, http.StatusBadRequest, "ticket has no messages to triage")
		return
	}

	history, err := h.messageRepo.ListByTicket(r.Context(), ticketID, 6)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := agent.RunParams{
		TicketID:    ticket.ID,
		Subject:     ticket.Subject,
		Summary:     ticket.Summary,
		LastMessage: toAgentMessage(latest),
		ContractorSearch: &agent.ContractorSearchContext{
			PostalCode: ticket.PostalCode,
		},
	}
	for _, msg := range history {
		if msg.ID == latest.ID {
			continue
		}
		params.Conversation = append(params.Conversation, toAgentMessage(msg))
	}

	if ticket.Category != "" {
		params.CategoryHint = ticket.Category
		if h.profiles != nil {
			if p := h.profiles.ByCategory(ticket.Category); p != nil {
				params.Instructions = strings.TrimSpace(p.Instructions)
				params.ContractorSearch.Specialty = p.DefaultSpecialty
			}
		}
	}

	result, err := h.runner.Run(r.Context(), params, h.agentHandlers)
	if err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, triageResponse{
		Triage:         result.Triage,
		Contractors:    result.Contractors,
		OutputText:     result.OutputText,
		ToolExecutions: result.ToolExecutions,
	})
}

func toAgentMessage(msg *db.TicketMessage) agent.Message {
	return agent.Message{
		ID:        msg.ID,
		Body:      msg.Body,
		Direction: msg.Direction,
		Channel:   msg.Channel,
		Author:    msg.AuthorName,
		SentAt:    msg.SentAt,
	}
}
