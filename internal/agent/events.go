package agent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/user/propdesk/internal/db"
)

const defaultEventQueueSize = 256

// EventLogger records triage and tool-execution events for audit. Writes go
// through a local queue drained by a single goroutine, so a slow or failing
// sink can never stall or fail a run: Log never blocks and never returns an
// error. Queue overflow drops the event.
type EventLogger struct {
	repo  *db.AgentEventRepo
	queue chan *db.AgentEvent

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func NewEventLogger(repo *db.AgentEventRepo) *EventLogger {
	return &EventLogger{
		repo:  repo,
		queue: make(chan *db.AgentEvent, defaultEventQueueSize),
		done:  make(chan struct{}),
	}
}

// Start drains the queue until ctx is cancelled and the queue is closed.
// Intended to run once, in its own goroutine.
func (l *EventLogger) Start(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return
		case event, ok := <-l.queue:
			if !ok {
				return
			}
			l.write(event)
		}
	}
}

func (l *EventLogger) drain() {
	for {
		select {
		case event, ok := <-l.queue:
			if !ok {
				return
			}
			l.write(event)
		default:
			return
		}
	}
}

func (l *EventLogger) write(event *db.AgentEvent) {
	if l.repo == nil || event == nil {
		return
	}
	if err := l.repo.Create(context.Background(), event); err != nil {
		slog.Debug("agent event write failed", "ticket_id", event.TicketID, "event_type", event.EventType, "error", err)
	}
}

// Log enqueues one audit event. It never blocks and never reports failure.
func (l *EventLogger) Log(ticketID, eventType string, record ToolExecution) {
	if l == nil || l.closed.Load() {
		return
	}
	event := &db.AgentEvent{
		TicketID:  ticketID,
		EventType: eventType,
		CallID:    record.CallID,
		Tool:      record.Tool,
		Input:     toJSON(record.Input),
		Output:    toJSON(record.Output),
	}
	select {
	case l.queue <- event:
	default:
		slog.Debug("agent event queue full, dropping event", "ticket_id", ticketID, "event_type", eventType)
	}
}

// Close stops accepting events and lets Start finish the backlog.
func (l *EventLogger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.queue)
	})
	<-l.done
}
