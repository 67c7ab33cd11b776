package dialogue

import (
	"fmt"
	"strings"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// Scripted steps. Steps 1..NumQuestions ask the qualifying questions;
// StepOpen and above is free-form dialogue.
const (
	StepGreeting = 0
	StepOpen     = NumQuestions + 1
)

// DefaultMaxClarify is how many times a short answer is re-asked before the
// machine moves on anyway.
const DefaultMaxClarify = 2

// Outcome is the qualifier's decision for one turn.
type Outcome struct {
	Reply     string
	ShowImage bool
	// Handled is false when the turn needs the free-form path.
	Handled bool
	Path    string
}

// Qualifier drives the scripted question sequence. It never calls out and
// never fails except on an impossible step value.
type Qualifier struct {
	script     Script
	picker     Picker
	canned     Classifier
	maxClarify int
}

// NewQualifier creates a qualifier over script. maxClarify <= 0 re-asks
// short answers without limit.
func NewQualifier(script Script, picker Picker, maxClarify int) *Qualifier {
	if picker == nil {
		picker = RandomPicker{}
	}
	return &Qualifier{
		script:     script,
		picker:     picker,
		canned:     newCannedClassifier(script),
		maxClarify: maxClarify,
	}
}

// Advance applies the user's latest answer to sess and returns the reply.
func (q *Qualifier) Advance(sess *Session, answer string) (Outcome, error) {
	switch {
	case sess.step < StepGreeting:
		return Outcome{}, fmt.Errorf("%w: step %d", ErrSessionState, sess.step)
	case sess.step == StepGreeting:
		sess.step = 1
		first := q.script.Questions[0].Prompt
		return Outcome{Reply: joinSentences(q.script.Greeting, first), Handled: true, Path: "greeting"}, nil
	case sess.step <= NumQuestions:
		return q.ask(sess, strings.TrimSpace(answer)), nil
	default:
		return q.open(answer), nil
	}
}

func (q *Qualifier) ask(sess *Session, answer string) Outcome {
	current := q.script.Questions[sess.step-1]
	if answer != "" {
		sess.lead.Set(current.Key, answer)
	}

	if wordCount(answer) < 2 && (q.maxClarify <= 0 || sess.clarifyAttempts < q.maxClarify) {
		sess.clarifyAttempts++
		reply := joinSentences(q.picker.Pick(q.script.Clarify), q.picker.Pick(current.Phrasings()))
		return Outcome{Reply: reply, Handled: true, Path: "clarify"}
	}

	sess.clarifyAttempts = 0
	sess.step++
	if sess.step == StepOpen {
		return Outcome{Reply: q.confirmation(sess.lead), Handled: true, Path: "confirm"}
	}
	next := q.script.Questions[sess.step-1]
	return Outcome{Reply: q.picker.Pick(next.Phrasings()), Handled: true, Path: "question"}
}

func (q *Qualifier) open(text string) Outcome {
	intent, ok := q.canned.Classify(text)
	if !ok {
		return Outcome{}
	}
	if intent == IntentMedia {
		return Outcome{Reply: q.script.MediaReply, ShowImage: true, Handled: true, Path: "media"}
	}
	topic, _ := intent.Topic()
	for _, f := range q.script.FAQs {
		if f.Topic == topic {
			return Outcome{Reply: f.Answer, Handled: true, Path: "faq"}
		}
	}
	return Outcome{}
}

// Filler returns a generic open-dialogue reply.
func (q *Qualifier) Filler() string {
	return q.picker.Pick(q.script.Fillers)
}

func (q *Qualifier) confirmation(lead *Lead) string {
	r := strings.NewReplacer(
		"{company}", lead.Get(domain.FieldCompany),
		"{domain}", lead.Get(domain.FieldDomain),
		"{problem}", lead.Get(domain.FieldProblem),
		"{budget}", lead.Get(domain.FieldBudget),
	)
	return r.Replace(q.script.Confirmation)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func joinSentences(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
