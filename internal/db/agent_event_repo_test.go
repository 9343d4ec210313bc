package db

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestAgentEventRepoCreateAndList(t *testing.T) {
	database, _ := openTestDB(t)
	repo := NewAgentEventRepo(database.SQL())

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		event := &AgentEvent{
			TicketID:  "t-1",
			EventType: "tool_execution",
			CallID:    fmt.Sprintf("c%d", i),
			Tool:      "categorize_and_triage",
			Input:     `{"subject":"x"}`,
			Output:    `{"category":"MAINTENANCE"}`,
			CreatedAt: base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		}
		if err := repo.Create(context.Background(), event); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListByTicket(context.Background(), "t-1", 10)
	if err != nil {
		t.Fatalf("ListByTicket() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c0", "c1", "c2"} {
		if got[i].CallID != want {
			t.Fatalf("got[%d].CallID = %q, want %q", i, got[i].CallID, want)
		}
	}
}

func TestAgentEventRepoValidation(t *testing.T) {
	database, _ := openTestDB(t)
	repo := NewAgentEventRepo(database.SQL())

	if err := repo.Create(context.Background(), &AgentEvent{EventType: "tool_execution"}); err == nil {
		t.Fatalf("expected error for missing ticket id")
	}
	if err := repo.Create(context.Background(), &AgentEvent{TicketID: "t-1"}); err == nil {
		t.Fatalf("expected error for missing event type")
	}
}
