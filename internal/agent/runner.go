package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// maxRunIterations bounds the engine round-trip loop. It is a safety valve
// against a looping engine, not an expected path.
const maxRunIterations = 5

type Message struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Direction string    `json:"direction"`
	Channel   string    `json:"channel"`
	Author    string    `json:"author,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type ContractorSearchContext struct {
	PostalCode string `json:"postal_code,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// RunParams is the single input envelope for one triage run. It is
// constructed once per invocation and never mutated.
type RunParams struct {
	TicketID     string
	Subject      string
	Summary      string
	LastMessage  Message
	Conversation []Message
	Instructions string
	CategoryHint string

	ContractorSearch *ContractorSearchContext

	// Per-run engine overrides; zero values fall back to client defaults.
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// ToolCall is one opaque request from the engine: a call id, a tool name and
// a raw argument payload, untyped at receipt.
type ToolCall struct {
	ID      string
	Name    string
	RawArgs string
}

// ToolExecution pairs a tool call with its decoded input and its typed
// result or {"error": ...} output. One record per call, in submission order.
type ToolExecution struct {
	CallID string         `json:"call_id"`
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
	Output any            `json:"output"`
}

type RunResult struct {
	Response       *EngineResponse
	OutputText     string
	Triage         *TriageResult
	Contractors    *ContractorSearchResult
	ToolExecutions []ToolExecution
}

type ProgressEvent struct {
	Type     string         `json:"type"`
	TicketID string         `json:"ticket_id"`
	Name     string         `json:"name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type Options struct {
	Engine     *EngineClient
	Events     *EventLogger
	OnProgress func(ProgressEvent)
}

// Runner drives a bounded tool-calling conversation with the reasoning
// engine. It holds no per-run state; every Run builds its own accumulator
// and continuity chain, so a single Runner is safe for concurrent runs.
type Runner struct {
	engine     *EngineClient
	events     *EventLogger
	onProgress func(ProgressEvent)
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	return &Runner{
		engine:     opts.Engine,
		events:     opts.Events,
		onProgress: opts.OnProgress,
	}, nil
}

// Run executes one triage conversation and returns the final engine
// response, the derived triage and contractor results, and the full ordered
// audit trail of tool executions.
//
// Soft failures (bad arguments, unknown or unconfigured tools) are encoded
// into the execution record and fed back to the engine so it can correct
// itself. Handler failures are hard and abort the run.
func (r *Runner) Run(ctx context.Context, params RunParams, handlers Handlers) (*RunResult, error) {
	if strings.TrimSpace(params.TicketID) == "" {
		return nil, fmt.Errorf("ticket id is required")
	}
	if handlers.CategorizeAndTriage == nil {
		return nil, fmt.Errorf("categorize_and_triage handler is required")
	}

	tools := engineTools()
	cfg := turnConfig{
		model:           params.Model,
		temperature:     params.Temperature,
		maxOutputTokens: params.MaxOutputTokens,
	}
	input := []inputItem{
		{Type: "message", Role: "system", Content: BuildSystemPrompt()},
		{Type: "message", Role: "user", Content: BuildPrompt(params)},
	}

	executions := make([]ToolExecution, 0, 4)
	var prev ResponseRef
	var resp *EngineResponse

	for iteration := 0; iteration < maxRunIterations; iteration++ {
		var err error
		resp, err = r.engine.createResponse(ctx, cfg, tools, input, prev)
		if err != nil {
			return nil, fmt.Errorf("engine turn %d: %w", iteration+1, err)
		}
		prev = resp.Ref()

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			break
		}

		outputs := make([]inputItem, 0, len(calls))
		for _, call := range calls {
			record, err := r.executeCall(ctx, params, handlers, call)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", call.Name, err)
			}
			executions = append(executions, record)
			r.logEvent(params.TicketID, "tool_execution", record)
			outputs = append(outputs, inputItem{
				Type:   "function_call_output",
				CallID: call.ID,
				Output: toJSON(record.Output),
			})
		}
		input = outputs
	}

	result := &RunResult{
		Response:       resp,
		OutputText:     resp.OutputText(),
		ToolExecutions: executions,
	}

	// Last successful execution of each tool wins.
	for _, record := range executions {
		switch output := record.Output.(type) {
		case *TriageResult:
			result.Triage = output
		case *ContractorSearchResult:
			result.Contractors = output
		}
	}

	if result.Triage != nil {
		r.logEvent(params.TicketID, "triage_completed", ToolExecution{
			Tool:   ToolCategorizeAndTriage,
			Output: result.Triage,
		})
	}
	r.emit(ProgressEvent{Type: "done", TicketID: params.TicketID, Result: result.Triage})

	return result, nil
}

// executeCall turns one engine tool call into exactly one execution record.
// Argument problems never reach the handler; handler errors propagate.
func (r *Runner) executeCall(ctx context.Context, params RunParams, handlers Handlers, call ToolCall) (ToolExecution, error) {
	args := decodeArgs(call.RawArgs)
	record := ToolExecution{CallID: call.ID, Tool: call.Name, Input: args}
	r.emit(ProgressEvent{Type: "tool_call", TicketID: params.TicketID, Name: call.Name, Args: args})

	def, known := GetToolDefinition(call.Name)
	if !known {
		record.Output = errorOutput(fmt.Sprintf("unsupported tool: %s", call.Name))
		r.emit(ProgressEvent{Type: "tool_result", TicketID: params.TicketID, Name: call.Name, Result: record.Output})
		return record, nil
	}

	if err := validateArgs(def, args); err != nil {
		record.Output = errorOutput("Invalid arguments: " + err.Error())
		r.emit(ProgressEvent{Type: "tool_result", TicketID: params.TicketID, Name: call.Name, Result: record.Output})
		return record, nil
	}

	output, err := r.dispatch(ctx, params, handlers, call.Name, args)
	if err != nil {
		r.emit(ProgressEvent{Type: "error", TicketID: params.TicketID, Name: call.Name, Error: err.Error()})
		return record, err
	}
	record.Output = output
	r.emit(ProgressEvent{Type: "tool_result", TicketID: params.TicketID, Name: call.Name, Result: record.Output})
	return record, nil
}

func (r *Runner) dispatch(ctx context.Context, params RunParams, handlers Handlers, name string, args map[string]any) (any, error) {
	switch name {
	case ToolCategorizeAndTriage:
		var input TriageInput
		if err := remarshal(args, &input); err != nil {
			return nil, err
		}
		// Never trust an engine-supplied ticket id.
		input.TicketID = params.TicketID
		return handlers.CategorizeAndTriage(ctx, input)

	case ToolSearchContractors:
		if handlers.SearchContractors == nil {
			return errorOutput("search_contractors handler is not configured."), nil
		}
		var input ContractorSearchInput
		if err := remarshal(args, &input); err != nil {
			return nil, err
		}
		input.TicketID = params.TicketID
		if defaults := params.ContractorSearch; defaults != nil {
			if input.Specialty == "" {
				input.Specialty = defaults.Specialty
			}
			if input.PostalCode == "" {
				input.PostalCode = defaults.PostalCode
			}
			if input.MaxResults <= 0 {
				input.MaxResults = defaults.MaxResults
			}
		}
		return handlers.SearchContractors(ctx, input)

	default:
		return nil, fmt.Errorf("no dispatch for tool %q", name)
	}
}

func (r *Runner) logEvent(ticketID, eventType string, record ToolExecution) {
	if r.events == nil {
		return
	}
	r.events.Log(ticketID, eventType, record)
}

func (r *Runner) emit(event ProgressEvent) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(event)
}

// decodeArgs parses the raw argument payload. Malformed JSON degrades to an
// empty object so the schema validator reports the problem instead of the
// run aborting.
func decodeArgs(raw string) map[string]any {
	args := map[string]any{}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return args
	}
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func errorOutput(message string) map[string]any {
	return map[string]any{"error": message}
}

func remarshal(args map[string]any, dst any) error {
	buf, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func toJSON(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(buf)
}
