package profile

// TriageProfile tunes how tickets of one category are handled: the checklist
// staff work through, an optional default assignee, extra agent instructions
// and the contractor specialty to suggest by default.
type TriageProfile struct {
	ID               string   `yaml:"id" json:"id"`
	Category         string   `yaml:"category" json:"category"`
	Checklist        []string `yaml:"checklist" json:"checklist"`
	AssigneeID       string   `yaml:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	DefaultSpecialty string   `yaml:"default_specialty,omitempty" json:"default_specialty,omitempty"`
	Instructions     string   `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}
