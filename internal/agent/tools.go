package agent

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	ToolCategorizeAndTriage = "categorize_and_triage"
	ToolSearchContractors   = "search_contractors"
)

var (
	TicketCategories = []string{"MAINTENANCE", "BILLING", "COMPLAINT", "LEASE", "GENERAL"}
	TicketPriorities = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}
)

const postalCodePattern = `^[0-9]{4,5}(-[0-9]{4})?$`

type Param struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
	Items       string   `json:"items,omitempty"`
}

// ToolDefinition declares one tool's name, description and typed input/result
// shapes. The definitions slice is the single source of truth for both the
// engine tool advertisement and argument validation; its order is the order
// tools are advertised.
type ToolDefinition struct {
	Name        string
	Description string
	Input       map[string]Param
	Result      map[string]Param
}

func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolCategorizeAndTriage,
			Description: "Classify an inbound ticket message into category, priority, summary and an action checklist.",
			Input: map[string]Param{
				"ticket_id":      {Type: "string", Description: "Ticket identifier; supplied by the system, leave empty"},
				"subject":        {Type: "string", Description: "Ticket subject line", Required: true},
				"description":    {Type: "string", Description: "Free-text description of the tenant's issue", Required: true},
				"category_hint":  {Type: "string", Description: "Optional category suggestion", Enum: TicketCategories},
				"tenant_user_id": {Type: "string", Description: "Tenant user identifier when known"},
			},
			Result: map[string]Param{
				"category":              {Type: "string", Enum: TicketCategories, Required: true},
				"priority":              {Type: "string", Enum: TicketPriorities, Required: true},
				"requires_human_review": {Type: "boolean", Required: true},
				"summary":               {Type: "string", Required: true},
				"checklist":             {Type: "array", Items: "string", Required: true},
				"suggested_assignee_id": {Type: "string"},
				"tenant_user_id":        {Type: "string"},
			},
		},
		{
			Name:        ToolSearchContractors,
			Description: "Search the contractor directory for professionals matching a specialty near the property.",
			Input: map[string]Param{
				"ticket_id":   {Type: "string", Description: "Ticket identifier; supplied by the system, leave empty"},
				"specialty":   {Type: "string", Description: "Trade specialty, e.g. plumbing or electrical"},
				"postal_code": {Type: "string", Description: "Postal code of the property", Pattern: postalCodePattern},
				"max_results": {Type: "integer", Description: "Maximum matches to return", Minimum: intPtr(1), Maximum: intPtr(5)},
			},
			Result: map[string]Param{
				"contractors": {Type: "array", Items: "object", Required: true},
			},
		},
	}
}

func intPtr(v int) *int { return &v }

// GetToolDefinition returns the definition for name, if registered.
func GetToolDefinition(name string) (ToolDefinition, bool) {
	for _, def := range toolDefinitions() {
		if def.Name == name {
			return def, true
		}
	}
	return ToolDefinition{}, false
}

// engineTools renders the registry as the engine's tool advertisement list,
// preserving registry order.
func engineTools() []engineTool {
	defs := toolDefinitions()
	tools := make([]engineTool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, engineTool{
			Type:        "function",
			Name:        def.Name,
			Description: def.Description,
			Parameters:  inputJSONSchema(def),
			Strict:      true,
		})
	}
	return tools
}

func inputJSONSchema(def ToolDefinition) map[string]any {
	required := make([]string, 0)
	properties := make(map[string]any, len(def.Input))
	for key, p := range def.Input {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Pattern != "" {
			prop["pattern"] = p.Pattern
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		if p.Type == "array" && p.Items != "" {
			prop["items"] = map[string]any{"type": p.Items}
		}
		properties[key] = prop
		if p.Required {
			required = append(required, key)
		}
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// validateArgs enforces the tool's input schema strictly: unknown fields are
// rejected, required fields must be present, enums and patterns must match.
// Nothing is coerced.
func validateArgs(def ToolDefinition, args map[string]any) error {
	for key := range args {
		if _, ok := def.Input[key]; !ok {
			return fmt.Errorf("unknown field %q", key)
		}
	}

	names := make([]string, 0, len(def.Input))
	for name := range def.Input {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := def.Input[name]
		value, present := args[name]
		if !present {
			if p.Required {
				return fmt.Errorf("missing required field %q", name)
			}
			continue
		}
		if err := validateValue(name, p, value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, p Param, value any) error {
	switch p.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", name)
		}
		if len(p.Enum) > 0 && !containsString(p.Enum, s) {
			return fmt.Errorf("field %q must be one of %s", name, strings.Join(p.Enum, ", "))
		}
		if p.Pattern != "" && s != "" {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return fmt.Errorf("field %q has invalid pattern: %w", name, err)
			}
			if !re.MatchString(s) {
				return fmt.Errorf("field %q must match pattern %s", name, p.Pattern)
			}
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("field %q must be an integer", name)
		}
		n := int(f)
		if p.Minimum != nil && n < *p.Minimum {
			return fmt.Errorf("field %q must be >= %d", name, *p.Minimum)
		}
		if p.Maximum != nil && n > *p.Maximum {
			return fmt.Errorf("field %q must be <= %d", name, *p.Maximum)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("field %q must be a number", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", name)
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("field %q must be an array", name)
		}
		if p.Items == "string" {
			for i, item := range items {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("field %q[%d] must be a string", name, i)
				}
			}
		}
	default:
		return fmt.Errorf("field %q has unsupported type %q", name, p.Type)
	}
	return nil
}

func containsString(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
