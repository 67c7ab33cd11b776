package dialogue

import (
	"testing"

	"github.com/ashureev/willow-sdr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummary(t *testing.T) {
	cases := map[string]string{
		"plain":  summaryJSON,
		"fenced": "```json\n" + summaryJSON + "\n```",
		"chatty": "Sure! Here is the summary:\n" + summaryJSON + "\nLet me know if you need more.",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := ParseSummary(raw)
			require.NoError(t, err)
			assert.Equal(t, "Acme Corp", *s.Company)
			assert.Equal(t, "Book a demo call.", *s.AgentSummary)
			assert.Equal(t, "bye", *s.UserLastMessage)
		})
	}
}

func TestParseSummaryNormalizesValues(t *testing.T) {
	s, err := ParseSummary(`{"company": "  ", "budget": 50000, "problem": null, "summary": "ok"}`)

	require.NoError(t, err)
	assert.Nil(t, s.Company)
	assert.Nil(t, s.Problem)
	assert.Nil(t, s.Domain)
	assert.Equal(t, "50000", *s.Budget)
	assert.Equal(t, "ok", *s.Summary)
}

func TestParseSummaryRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{not json}", "} {"} {
		_, err := ParseSummary(raw)
		assert.ErrorIs(t, err, ErrMalformedOutput, raw)
	}
}

func TestFallbackSummary(t *testing.T) {
	l := NewLead()
	l.Set(domain.FieldCompany, "Acme Corp")
	l.Set(domain.FieldProblem, "churn")

	s := FallbackSummary("  free text summary ", l, "bye now")

	assert.Equal(t, "free text summary", *s.Summary)
	assert.Equal(t, "Acme Corp", *s.Company)
	assert.Equal(t, "churn", *s.Problem)
	assert.Nil(t, s.Domain)
	assert.Nil(t, s.Budget)
	assert.Nil(t, s.AgentSummary)
	assert.Equal(t, "bye now", *s.UserLastMessage)
}

func TestParseSummaryMatchesKeysCaseInsensitively(t *testing.T) {
	s, err := ParseSummary(`{"Company": "Acme Corp", "Summary": "Keen on a demo.", "User_Last_Message": "bye"}`)

	require.NoError(t, err)
	require.NotNil(t, s.Company)
	assert.Equal(t, "Acme Corp", *s.Company)
	assert.Equal(t, "Keen on a demo.", *s.Summary)
	assert.Equal(t, "bye", *s.UserLastMessage)
}

func TestParseSummaryRejectsObjectWithoutSummaryFields(t *testing.T) {
	for _, raw := range []string{
		`{"lead": {"company": "Acme Corp", "summary": "Keen on a demo."}}`,
		`{"result": "ok"}`,
		`{}`,
	} {
		_, err := ParseSummary(raw)
		assert.ErrorIs(t, err, ErrMalformedOutput, raw)
	}
}

func TestFillFromLeadKeepsBackendValues(t *testing.T) {
	l := NewLead()
	l.Set(domain.FieldCompany, "Acme Corp")
	l.Set(domain.FieldBudget, "5000 dollars")

	s, err := ParseSummary(`{"company": "ACME Corporation", "summary": "ok"}`)
	require.NoError(t, err)
	fillFromLead(s, l)

	assert.Equal(t, "ACME Corporation", *s.Company)
	assert.Equal(t, "5000 dollars", *s.Budget)
	assert.Nil(t, s.Domain)
}
