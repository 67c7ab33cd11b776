package domain

import "time"

// Qualification field keys, in the order they are asked.
const (
	FieldCompany = "company"
	FieldDomain  = "domain"
	FieldProblem = "problem"
	FieldBudget  = "budget"
)

// LeadSummary is the structured handoff record produced when a conversation ends.
// All extracted fields are nullable.
type LeadSummary struct {
	Company         *string `json:"company"`
	Domain          *string `json:"domain"`
	Problem         *string `json:"problem"`
	Budget          *string `json:"budget"`
	Summary         *string `json:"summary"`
	UserLastMessage *string `json:"user_last_message"`
	AgentSummary    *string `json:"agent_summary"`
	Conversation    []Turn  `json:"conversation,omitempty"`
}

// SummaryText returns the summary field or an empty string.
func (s *LeadSummary) SummaryText() string {
	if s == nil || s.Summary == nil {
		return ""
	}
	return *s.Summary
}

// StoredLead is a completed LeadSummary as persisted for operator retrieval.
type StoredLead struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	ArtifactID string      `json:"artifact_id,omitempty"`
	Lead       LeadSummary `json:"lead"`
	CreatedAt  time.Time   `json:"created_at"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
