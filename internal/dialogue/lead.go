package dialogue

import (
	"sort"
	"strings"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// Placeholder stands in for a qualification field that has not been collected.
const Placeholder = "(not provided)"

// Lead is the mutable record of qualification fields collected so far.
type Lead struct {
	fields map[string]string
}

// NewLead returns an empty lead record.
func NewLead() *Lead {
	return &Lead{fields: make(map[string]string)}
}

// Set stores value under key, replacing any earlier answer.
func (l *Lead) Set(key, value string) {
	l.fields[key] = value
}

// Lookup returns the stored value and whether it exists.
func (l *Lead) Lookup(key string) (string, bool) {
	v, ok := l.fields[key]
	return v, ok
}

// Get returns the stored value, or Placeholder when the field is missing.
func (l *Lead) Get(key string) string {
	if v, ok := l.fields[key]; ok && v != "" {
		return v
	}
	return Placeholder
}

// Snapshot returns a copy of the collected fields.
func (l *Lead) Snapshot() map[string]string {
	out := make(map[string]string, len(l.fields))
	for k, v := range l.fields {
		out[k] = v
	}
	return out
}

// Reset removes all collected fields.
func (l *Lead) Reset() {
	clear(l.fields)
}

// String renders the fields as {key: value, ...} with keys sorted.
func (l *Lead) String() string {
	return formatFields(l.fields)
}

// View converts the record into the partial LeadSummary shape used in replies.
func (l *Lead) View() domain.LeadSummary {
	get := func(k string) *string {
		v, _ := l.Lookup(k)
		return domain.StringPtr(v)
	}
	return domain.LeadSummary{
		Company: get(domain.FieldCompany),
		Domain:  get(domain.FieldDomain),
		Problem: get(domain.FieldProblem),
		Budget:  get(domain.FieldBudget),
	}
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(fields[k])
	}
	b.WriteByte('}')
	return b.String()
}
