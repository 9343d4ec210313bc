package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
	"github.com/user/propdesk/internal/directory"
	"github.com/user/propdesk/internal/profile"
	"github.com/user/propdesk/internal/triage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func engineStubResponse(v any) *http.Response {
	buf, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(buf))),
	}
}

type testEnv struct {
	handler http.Handler
	db      *db.DB
	events  *agent.EventLogger
}

// openAPI wires the full stack against a scripted engine transport: each call
// to the engine endpoint pops the next canned turn.
func openAPI(t *testing.T, engineTurns []any) *testEnv {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "api-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	registry, err := profile.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	events := agent.NewEventLogger(db.NewAgentEventRepo(database.SQL()))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go events.Start(ctx)

	turnIdx := 0
	engine := agent.NewEngineClient(agent.EngineOptions{
		APIKey:  "test-key",
		BaseURL: "http://mock/v1/responses",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				turn := engineTurns[len(engineTurns)-1]
				if turnIdx < len(engineTurns) {
					turn = engineTurns[turnIdx]
				}
				turnIdx++
				return engineStubResponse(turn), nil
			}),
		},
	})

	triageService := triage.NewService(db.NewTicketRepo(database.SQL()), registry)
	directoryService := directory.NewService(db.NewContractorRepo(database.SQL()), nil)
	handlers := agent.Handlers{
		CategorizeAndTriage: triageService.CategorizeAndTriage,
		SearchContractors:   directoryService.Search,
	}

	runner, err := agent.NewRunner(agent.Options{Engine: engine, Events: events})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	return &testEnv{
		handler: NewRouter(database.SQL(), runner, handlers, registry, "test-token"),
		db:      database,
		events:  events,
	}
}

func apiRequest(t *testing.T, h http.Handler, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if rr.Body.Len() == 0 {
		return
	}
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body: %v body=%s", err, rr.Body.String())
	}
}

func noToolTurn() any {
	return map[string]any{
		"id": "r1",
		"output": []any{map[string]any{
			"type":    "message",
			"content": []any{map[string]any{"type": "output_text", "text": "nothing to do"}},
		}},
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})

	unauth := apiRequest(t, env.handler, http.MethodGet, "/api/tickets", nil, false)
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d want %d", unauth.Code, http.StatusUnauthorized)
	}

	wrong := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	wrong.Header.Set("Authorization", "Bearer wrong-token")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, wrong)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusUnauthorized)
	}

	ok := apiRequest(t, env.handler, http.MethodGet, "/api/tickets", nil, true)
	if ok.Code != http.StatusOK {
		t.Fatalf("status=%d want %d", ok.Code, http.StatusOK)
	}

	query := httptest.NewRequest(http.MethodGet, "/api/tickets?token=test-token", nil)
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, query)
	if rr.Code != http.StatusOK {
		t.Fatalf("query token status=%d want %d", rr.Code, http.StatusOK)
	}
}

func TestTicketLifecycle(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})

	created := apiRequest(t, env.handler, http.MethodPost, "/api/tickets", map[string]any{
		"subject":     "Leaking faucet",
		"postal_code": "12345",
		"body":        "The kitchen faucet is dripping.",
		"author_name": "Sam Tenant",
	}, true)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", created.Code, created.Body.String())
	}
	var ticket db.Ticket
	decodeBody(t, created, &ticket)
	if ticket.ID == "" || ticket.Status != "open" {
		t.Fatalf("ticket=%+v", ticket)
	}

	detail := apiRequest(t, env.handler, http.MethodGet, "/api/tickets/"+ticket.ID, nil, true)
	if detail.Code != http.StatusOK {
		t.Fatalf("get status=%d", detail.Code)
	}
	var got ticketDetailResponse
	decodeBody(t, detail, &got)
	if got.Ticket == nil || len(got.Messages) != 1 {
		t.Fatalf("detail=%+v", got)
	}
	if got.Messages[0].Body != "The kitchen faucet is dripping." {
		t.Fatalf("message=%+v", got.Messages[0])
	}

	patched := apiRequest(t, env.handler, http.MethodPatch, "/api/tickets/"+ticket.ID, map[string]any{
		"status": "closed",
	}, true)
	if patched.Code != http.StatusOK {
		t.Fatalf("patch status=%d", patched.Code)
	}
	var updated db.Ticket
	decodeBody(t, patched, &updated)
	if updated.Status != "closed" {
		t.Fatalf("status=%q want closed", updated.Status)
	}

	deleted := apiRequest(t, env.handler, http.MethodDelete, "/api/tickets/"+ticket.ID, nil, true)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", deleted.Code)
	}
	missing := apiRequest(t, env.handler, http.MethodGet, "/api/tickets/"+ticket.ID, nil, true)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("get deleted status=%d", missing.Code)
	}
}

func TestCreateTicketRequiresSubject(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})
	rr := apiRequest(t, env.handler, http.MethodPost, "/api/tickets", map[string]any{"body": "hi"}, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTriageEndpointRunsAgent(t *testing.T) {
	triageCallTurn := map[string]any{
		"id": "resp-1",
		"output": []any{map[string]any{
			"type":      "function_call",
			"call_id":   "call-1",
			"name":      "categorize_and_triage",
			"arguments": `{"subject":"Leaking faucet","description":"The kitchen faucet is dripping."}`,
		}},
	}
	finalTurn := map[string]any{
		"id": "resp-2",
		"output": []any{map[string]any{
			"type":    "message",
			"content": []any{map[string]any{"type": "output_text", "text": "Classified as maintenance."}},
		}},
	}
	env := openAPI(t, []any{triageCallTurn, finalTurn})

	created := apiRequest(t, env.handler, http.MethodPost, "/api/tickets", map[string]any{
		"subject": "Leaking faucet",
		"body":    "The kitchen faucet is dripping.",
	}, true)
	var ticket db.Ticket
	decodeBody(t, created, &ticket)

	rr := apiRequest(t, env.handler, http.MethodPost, "/api/tickets/"+ticket.ID+"/triage", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("triage status=%d body=%s", rr.Code, rr.Body.String())
	}
	var result triageResponse
	decodeBody(t, rr, &result)
	if result.Triage == nil || result.Triage.Category != "MAINTENANCE" {
		t.Fatalf("triage=%+v", result.Triage)
	}
	if result.OutputText != "Classified as maintenance." {
		t.Fatalf("output=%q", result.OutputText)
	}
	if len(result.ToolExecutions) != 1 || result.ToolExecutions[0].CallID != "call-1" {
		t.Fatalf("executions=%+v", result.ToolExecutions)
	}

	detail := apiRequest(t, env.handler, http.MethodGet, "/api/tickets/"+ticket.ID, nil, true)
	var got ticketDetailResponse
	decodeBody(t, detail, &got)
	if got.Ticket.Status != "triaged" || got.Ticket.Category != "MAINTENANCE" {
		t.Fatalf("ticket after triage=%+v", got.Ticket)
	}

	// Flush the audit queue, then the events endpoint must show the run.
	env.events.Close()
	eventsResp := apiRequest(t, env.handler, http.MethodGet, "/api/tickets/"+ticket.ID+"/events", nil, true)
	if eventsResp.Code != http.StatusOK {
		t.Fatalf("events status=%d", eventsResp.Code)
	}
	var events []*db.AgentEvent
	decodeBody(t, eventsResp, &events)
	if len(events) < 2 {
		t.Fatalf("events=%d want >= 2", len(events))
	}
}

func TestTriageEndpointMissingTicket(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})
	rr := apiRequest(t, env.handler, http.MethodPost, "/api/tickets/missing/triage", nil, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestTriageEndpointRequiresMessages(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})
	created := apiRequest(t, env.handler, http.MethodPost, "/api/tickets", map[string]any{
		"subject": "No message here",
	}, true)
	var ticket db.Ticket
	decodeBody(t, created, &ticket)

	rr := apiRequest(t, env.handler, http.MethodPost, "/api/tickets/"+ticket.ID+"/triage", nil, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestContractorEndpoints(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})

	created := apiRequest(t, env.handler, http.MethodPost, "/api/contractors", map[string]any{
		"name":      "Ace Plumbing",
		"specialty": "Plumbing",
		"rating":    4.8,
	}, true)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", created.Code, created.Body.String())
	}
	var contractor db.Contractor
	decodeBody(t, created, &contractor)
	if !contractor.Active {
		t.Fatalf("new contractors should be active")
	}

	list := apiRequest(t, env.handler, http.MethodGet, "/api/contractors?specialty=plumbing", nil, true)
	if list.Code != http.StatusOK {
		t.Fatalf("list status=%d", list.Code)
	}
	var contractors []*db.Contractor
	decodeBody(t, list, &contractors)
	if len(contractors) != 1 || contractors[0].Name != "Ace Plumbing" {
		t.Fatalf("contractors=%+v", contractors)
	}

	missing := apiRequest(t, env.handler, http.MethodGet, "/api/contractors/missing", nil, true)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("get missing status=%d", missing.Code)
	}
}

func TestProfilesEndpoint(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})
	rr := apiRequest(t, env.handler, http.MethodGet, "/api/profiles", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var profiles []*profile.TriageProfile
	decodeBody(t, rr, &profiles)
	if len(profiles) != 5 {
		t.Fatalf("profiles=%d want 5", len(profiles))
	}
}

func TestUnknownFieldsInBodyRejected(t *testing.T) {
	env := openAPI(t, []any{noToolTurn()})
	rr := apiRequest(t, env.handler, http.MethodPost, "/api/tickets", map[string]any{
		"subject": "x",
		"extra":   "field",
	}, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", rr.Code, http.StatusBadRequest)
	}
}
