package dialogue

import (
	"strconv"
	"strings"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// PromptInput is everything the free-form prompt is rendered from.
type PromptInput struct {
	Persona   string
	Knowledge string
	History   []domain.Turn
	Step      int
	Lead      map[string]string
	Labels    Labels
	Suffix    string
}

// AssemblePrompt renders a free-form dialogue prompt. It is deterministic and
// does no truncation of its own.
func AssemblePrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(in.Persona)
	b.WriteString("\n\nKnowledge:\n")
	b.WriteString(in.Knowledge)
	b.WriteString("\n\nConversation so far:\n")
	b.WriteString(RenderTranscript(in.History, in.Labels))
	b.WriteString("\n\nCurrent step: ")
	b.WriteString(strconv.Itoa(in.Step))
	b.WriteString("\nLead so far: ")
	b.WriteString(formatFields(in.Lead))
	b.WriteString("\n\n")
	b.WriteString(in.Suffix)
	return b.String()
}

// SummaryFields are the keys the extraction prompt asks for, in order.
var SummaryFields = []string{
	domain.FieldCompany,
	domain.FieldDomain,
	domain.FieldProblem,
	domain.FieldBudget,
	"summary",
	"user_last_message",
	"agent_summary",
}

// AssembleSummaryPrompt renders the lead-extraction prompt for a transcript.
func AssembleSummaryPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("You are reviewing a finished sales conversation between a prospect and an AI sales representative.\n")
	b.WriteString("Return ONLY a JSON object with exactly these fields: ")
	b.WriteString(strings.Join(SummaryFields, ", "))
	b.WriteString(".\n")
	b.WriteString("Each field is a string or null when the conversation does not say. ")
	b.WriteString("\"summary\" is a two or three sentence overview for the sales team, ")
	b.WriteString("\"user_last_message\" is the prospect's final message, ")
	b.WriteString("and \"agent_summary\" is your recommended next step.\n")
	b.WriteString("Do not wrap the JSON in markdown.\n\nConversation:\n")
	b.WriteString(transcript)
	return b.String()
}
