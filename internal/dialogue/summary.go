package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// summaryFields mirrors the extraction schema. Decoding into tagged fields
// matches keys case-insensitively.
type summaryFields struct {
	Company         json.RawMessage `json:"company"`
	Domain          json.RawMessage `json:"domain"`
	Problem         json.RawMessage `json:"problem"`
	Budget          json.RawMessage `json:"budget"`
	Summary         json.RawMessage `json:"summary"`
	UserLastMessage json.RawMessage `json:"user_last_message"`
	AgentSummary    json.RawMessage `json:"agent_summary"`
}

func (f summaryFields) empty() bool {
	for _, v := range []json.RawMessage{f.Company, f.Domain, f.Problem, f.Budget, f.Summary, f.UserLastMessage, f.AgentSummary} {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// ParseSummary decodes backend output into a LeadSummary. Markdown code fences
// and text around the JSON object are tolerated. An object carrying none of
// the summary fields, or any other shape, yields ErrMalformedOutput.
func ParseSummary(raw string) (*domain.LeadSummary, error) {
	body := stripFences(raw)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformedOutput)
	}

	var fields summaryFields
	if err := json.Unmarshal([]byte(body[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if fields.empty() {
		return nil, fmt.Errorf("%w: none of %s present", ErrMalformedOutput, strings.Join(SummaryFields, ", "))
	}

	return &domain.LeadSummary{
		Company:         field(fields.Company),
		Domain:          field(fields.Domain),
		Problem:         field(fields.Problem),
		Budget:          field(fields.Budget),
		Summary:         field(fields.Summary),
		UserLastMessage: field(fields.UserLastMessage),
		AgentSummary:    field(fields.AgentSummary),
	}, nil
}

// FallbackSummary builds a summary when the backend output cannot be decoded:
// the raw text becomes the summary and qualification fields come from the lead record.
func FallbackSummary(raw string, lead *Lead, lastUser string) *domain.LeadSummary {
	known := func(k string) *string {
		v, _ := lead.Lookup(k)
		return domain.StringPtr(strings.TrimSpace(v))
	}
	return &domain.LeadSummary{
		Company:         known(domain.FieldCompany),
		Domain:          known(domain.FieldDomain),
		Problem:         known(domain.FieldProblem),
		Budget:          known(domain.FieldBudget),
		Summary:         domain.StringPtr(strings.TrimSpace(raw)),
		UserLastMessage: domain.StringPtr(strings.TrimSpace(lastUser)),
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// field normalizes one JSON value to a nullable string. Numbers and booleans
// are kept in their literal form; blank strings become null.
func field(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch v := v.(type) {
	case string:
		return domain.StringPtr(strings.TrimSpace(v))
	case float64:
		return domain.StringPtr(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		return domain.StringPtr(strconv.FormatBool(v))
	case nil:
		return nil
	default:
		return domain.StringPtr(string(raw))
	}
}

// fillFromLead copies qualification fields the backend left null from the lead record.
func fillFromLead(s *domain.LeadSummary, lead *Lead) {
	for key, dst := range map[string]**string{
		domain.FieldCompany: &s.Company,
		domain.FieldDomain:  &s.Domain,
		domain.FieldProblem: &s.Problem,
		domain.FieldBudget:  &s.Budget,
	} {
		if *dst != nil {
			continue
		}
		if v, ok := lead.Lookup(key); ok {
			*dst = domain.StringPtr(strings.TrimSpace(v))
		}
	}
}

// Extraction is the result of one summary extraction.
type Extraction struct {
	Reply      string
	Summary    *domain.LeadSummary
	ArtifactID string
	// Failed is set when the backend could not be reached.
	Failed bool
}

// Extractor turns a finished session into a LeadSummary.
type Extractor struct {
	gen       Generator
	artifacts ArtifactStore
	script    Script
	logger    *slog.Logger
}

// NewExtractor creates an extractor. artifacts may be nil.
func NewExtractor(gen Generator, artifacts ArtifactStore, script Script, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{gen: gen, artifacts: artifacts, script: script, logger: logger}
}

// Extract runs extraction for sess and marks it terminated. On backend failure
// no summary is produced and no bot turn is appended.
func (x *Extractor) Extract(ctx context.Context, sess *Session) Extraction {
	sess.terminated = true
	transcript := RenderTranscript(sess.history.Snapshot(), x.script.Labels)

	var summary *domain.LeadSummary
	if x.gen == nil {
		summary = FallbackSummary(sess.lead.String(), sess.lead, sess.history.LastUserText())
	} else {
		raw, err := x.gen.Generate(ctx, AssembleSummaryPrompt(transcript))
		if err != nil {
			x.logger.Warn("summary extraction failed", "session_id", sess.id, "error", err)
			return Extraction{Reply: x.script.SummaryFailedReply, Failed: true}
		}
		summary, err = ParseSummary(raw)
		if err != nil {
			x.logger.Warn("summary output malformed, using fallback", "session_id", sess.id, "error", err)
			summary = FallbackSummary(raw, sess.lead, sess.history.LastUserText())
		}
		fillFromLead(summary, sess.lead)
	}

	sess.history.Append(domain.RoleBot, x.script.ClosingReply)
	summary.Conversation = sess.history.Snapshot()
	sess.summary = summary

	out := Extraction{Reply: x.script.ClosingReply, Summary: summary}
	if x.artifacts != nil {
		id, err := x.artifacts.Put([]byte(summary.SummaryText()), ".txt")
		if err != nil {
			x.logger.Warn("failed to persist summary artifact", "session_id", sess.id, "error", err)
		} else {
			out.ArtifactID = id
		}
	}
	return out
}
