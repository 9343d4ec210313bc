package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/user/propdesk/internal/db"
)

type createTicketRequest struct {
	Subject      string `json:"subject"`
	Summary      string `json:"summary"`
	TenantUserID string `json:"tenant_user_id"`
	PostalCode   string `json:"postal_code"`
	Body         string `json:"body"`
	Channel      string `json:"channel"`
	AuthorName   string `json:"author_name"`
}

type updateTicketRequest struct {
	Status     *string `json:"status"`
	AssigneeID *string `json:"assignee_id"`
}

type ticketDetailResponse struct {
	Ticket   *db.Ticket          `json:"ticket"`
	Messages []*db.TicketMessage `json:"messages"`
}

func (h *handler) createTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Subject == "" {
		jsonError(w, http.StatusBadRequest, "subject is required")
		return
	}

	ticket := &db.Ticket{
		Subject:      req.Subject,
		Summary:      req.Summary,
		TenantUserID: req.TenantUserID,
		PostalCode:   req.PostalCode,
		Status:       "open",
	}
	if err := h.ticketRepo.Create(r.Context(), ticket); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if strings.TrimSpace(req.Body) != "" {
		msg := &db.TicketMessage{
			TicketID:   ticket.ID,
			Direction:  "inbound",
			Channel:    req.Channel,
			AuthorName: req.AuthorName,
			Body:       req.Body,
			SentAt:     time.Now().UTC(),
		}
		if err := h.messageRepo.Create(r.Context(), msg); err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	jsonResponse(w, http.StatusCreated, ticket)
}

func (h *handler) listTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.ticketRepo.List(r.Context(), db.TicketFilter{
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, tickets)
}

func (h *handler) getTicket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ticket, err := h.ticketRepo.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ticket == nil {
		jsonError(w, http.StatusNotFound, "ticket not found")
		return
	}

	messages, err := h.messageRepo.ListByTicket(r.Context(), id, 50)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, ticketDetailResponse{Ticket: ticket, Messages: messages})
}

func (h *handler) updateTicket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status == nil {
		jsonError(w, http.StatusBadRequest, "status is required")
		return
	}
	if err := h.ticketRepo.UpdateStatus(r.Context(), id, *req.Status); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ticket, err := h.ticketRepo.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, ticket)
}

func (h *handler) deleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.ticketRepo.Delete(r.Context(), r.PathValue("id")); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

type createMessageRequest struct {
	Direction  string `json:"direction"`
	Channel    string `json:"channel"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
}

func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
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

	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg := &db.TicketMessage{
		TicketID:   ticketID,
		Direction:  req.Direction,
		Channel:    req.Channel,
		AuthorName: req.AuthorName,
		Body:       req.Body,
		SentAt:     time.Now().UTC(),
	}
	if err := h.messageRepo.Create(r.Context(), msg); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusCreated, msg)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messageRepo.ListByTicket(r.Context(), r.PathValue("id"), 50)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, messages)
}

func (h *handler) listAgentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventRepo.ListByTicket(r.Context(), r.PathValue("id"), 100)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, events)
}
