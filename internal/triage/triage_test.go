package triage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/user/propdesk/internal/agent"
	"github.com/user/propdesk/internal/db"
	"github.com/user/propdesk/internal/profile"
)

func newTestService(t *testing.T) (*Service, *db.TicketRepo) {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "triage-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	registry, err := profile.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	tickets := db.NewTicketRepo(database.SQL())
	return NewService(tickets, registry), tickets
}

func createOpenTicket(t *testing.T, tickets *db.TicketRepo, subject string) *db.Ticket {
	t.Helper()
	ticket := &db.Ticket{Subject: subject}
	if err := tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestCategorizeAndTriageMaintenance(t *testing.T) {
	service, tickets := newTestService(t)
	ticket := createOpenTicket(t, tickets, "Leaking faucet")

	result, err := service.CategorizeAndTriage(context.Background(), agent.TriageInput{
		TicketID:    ticket.ID,
		Subject:     "Leaking faucet",
		Description: "The kitchen faucet has been dripping for two days.",
	})
	if err != nil {
		t.Fatalf("CategorizeAndTriage() error = %v", err)
	}

	if result.Category != "MAINTENANCE" {
		t.Fatalf("category = %q, want MAINTENANCE", result.Category)
	}
	if result.Priority != "MEDIUM" {
		t.Fatalf("priority = %q, want MEDIUM", result.Priority)
	}
	if result.Summary != "Tenant reports: Leaking faucet" {
		t.Fatalf("summary = %q", result.Summary)
	}
	if len(result.Checklist) == 0 {
		t.Fatalf("checklist should come from the maintenance profile")
	}

	stored, err := tickets.Get(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.Status != "triaged" || stored.Category != "MAINTENANCE" {
		t.Fatalf("triage not persisted: %+v", stored)
	}
}

func TestCategorizeAndTriagePriorities(t *testing.T) {
	service, tickets := newTestService(t)

	cases := []struct {
		subject      string
		description  string
		wantCategory string
		wantPriority string
	}{
		{"Burst pipe flooding the bathroom", "Water everywhere", "MAINTENANCE", "URGENT"},
		{"No heat in apartment", "The boiler seems dead", "MAINTENANCE", "HIGH"},
		{"Overcharged on my rent invoice", "The bill is wrong", "BILLING", "LOW"},
		{"Loud neighbor parties every night", "Noise until 3am", "COMPLAINT", "LOW"},
		{"Question about lease renewal", "My lease ends soon", "LEASE", "LOW"},
	}
	for _, tc := range cases {
		ticket := createOpenTicket(t, tickets, tc.subject)
		result, err := service.CategorizeAndTriage(context.Background(), agent.TriageInput{
			TicketID:    ticket.ID,
			Subject:     tc.subject,
			Description: tc.description,
		})
		if err != nil {
			t.Fatalf("CategorizeAndTriage(%q) error = %v", tc.subject, err)
		}
		if result.Category != tc.wantCategory {
			t.Fatalf("%q: category = %q, want %q", tc.subject, result.Category, tc.wantCategory)
		}
		if result.Priority != tc.wantPriority {
			t.Fatalf("%q: priority = %q, want %q", tc.subject, result.Priority, tc.wantPriority)
		}
	}
}

func TestCategorizeAndTriageFallsBackToHint(t *testing.T) {
	service, tickets := newTestService(t)
	ticket := createOpenTicket(t, tickets, "Misc question")

	result, err := service.CategorizeAndTriage(context.Background(), agent.TriageInput{
		TicketID:     ticket.ID,
		Subject:      "Misc question",
		Description:  "Just wondering about something.",
		CategoryHint: "billing",
	})
	if err != nil {
		t.Fatalf("CategorizeAndTriage() error = %v", err)
	}
	if result.Category != "BILLING" {
		t.Fatalf("category = %q, want BILLING", result.Category)
	}
}

func TestCategorizeAndTriageDefaultsToGeneral(t *testing.T) {
	service, tickets := newTestService(t)
	ticket := createOpenTicket(t, tickets, "Hello")

	result, err := service.CategorizeAndTriage(context.Background(), agent.TriageInput{
		TicketID:    ticket.ID,
		Subject:     "Hello",
		Description: "Just saying hi.",
	})
	if err != nil {
		t.Fatalf("CategorizeAndTriage() error = %v", err)
	}
	if result.Category != "GENERAL" || result.Priority != "LOW" {
		t.Fatalf("result = %+v", result)
	}
}

func TestCategorizeAndTriageFlagsHumanReview(t *testing.T) {
	service, tickets := newTestService(t)
	ticket := createOpenTicket(t, tickets, "I will sue you")

	result, err := service.CategorizeAndTriage(context.Background(), agent.TriageInput{
		TicketID:    ticket.ID,
		Subject:     "I will sue you",
		Description: "My lawyer will be in touch about the unsafe stairwell.",
	})
	if err != nil {
		t.Fatalf("CategorizeAndTriage() error = %v", err)
	}
	if !result.RequiresHumanReview {
		t.Fatalf("legal threat should require human review")
	}
}

func TestCategorizeAndTriageMissingTicketFails(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.CategorizeAndTriage(context.Background(), agent.TriageInput{
		TicketID:    "missing",
		Subject:     "Leaking faucet",
		Description: "drip drip",
	})
	if err == nil {
		t.Fatalf("expected persistence error for unknown ticket")
	}
}
