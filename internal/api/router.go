package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
	"github.com/user/propdesk/internal/profile"
)

type handler struct {
	ticketRepo     *db.TicketRepo
	messageRepo    *db.MessageRepo
	contractorRepo *db.ContractorRepo
	eventRepo      *db.AgentEventRepo
	profiles       *profile.Registry
	runner         *agent.Runner
	agentHandlers  agent.Handlers
}

func NewRouter(conn *sql.DB, runner *agent.Runner, agentHandlers agent.Handlers, profiles *profile.Registry, token string) http.Handler {
	handler := &handler{
		ticketRepo:     db.NewTicketRepo(conn),
		messageRepo:    db.NewMessageRepo(conn),
		contractorRepo: db.NewContractorRepo(conn),
		eventRepo:      db.NewAgentEventRepo(conn),
		profiles:       profiles,
		runner:         runner,
		agentHandlers:  agentHandlers,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tickets", handler.createTicket)
	mux.HandleFunc("GET /api/tickets", handler.listTickets)
	mux.HandleFunc("GET /api/tickets/{id}", handler.getTicket)
	mux.HandleFunc("PATCH /api/tickets/{id}", handler.updateTicket)
	mux.HandleFunc("DELETE /api/tickets/{id}", handler.deleteTicket)

	mux.HandleFunc("POST /api/tickets/{id}/messages", handler.createMessage)
	mux.HandleFunc("GET /api/tickets/{id}/messages", handler.listMessages)

	mux.HandleFunc("POST /api/tickets/{id}/triage", handler.triageTicket)
	mux.HandleFunc("GET /api/tickets/{id}/events", handler.listAgentEvents)

	mux.HandleFunc("POST /api/contractors", handler.createContractor)
	mux.HandleFunc("GET /api/contractors", handler.listContractors)
	mux.HandleFunc("GET /api/contractors/{id}", handler.getContractor)
	mux.HandleFunc("DELETE /api/contractors/{id}", handler.deleteContractor)

	mux.HandleFunc("GET /api/profiles", handler.listProfiles)

	wrapped := authMiddleware(token)(jsonMiddleware(corsMiddleware(mux)))
	return wrapped
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if strings.TrimSpace(authHeader[7:]) == token {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Query().Get("token") == token {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (h *handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		jsonResponse(w, http.StatusOK, []any{})
		return
	}
	jsonResponse(w, http.StatusOK, h.profiles.List())
}
