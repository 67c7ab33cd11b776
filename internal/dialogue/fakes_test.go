package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/willow-sdr/internal/domain"
	"github.com/stretchr/testify/require"
)

const summaryJSON = `{"company":"Acme Corp","domain":"Healthcare software","problem":"Slow lead response","budget":"5000 dollars","summary":"Acme wants faster lead response.","user_last_message":"bye","agent_summary":"Book a demo call."}`

// fakeGenerator answers summary prompts and chat prompts separately.
type fakeGenerator struct {
	mu       sync.Mutex
	chat     func(ctx context.Context, prompt string) (string, error)
	summary  func(ctx context.Context, prompt string) (string, error)
	prompts  []string
	extracts int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	isSummary := strings.Contains(prompt, "Return ONLY a JSON object")
	if isSummary {
		g.extracts++
	}
	g.mu.Unlock()

	if isSummary {
		if g.summary == nil {
			return summaryJSON, nil
		}
		return g.summary(ctx, prompt)
	}
	if g.chat == nil {
		return "Happy to help with that. What matters most to you?", nil
	}
	return g.chat(ctx, prompt)
}

func (g *fakeGenerator) extractCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.extracts
}

func failing(err error) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return "", err }
}

var errBackend = errors.New("backend down")

type fakeSpeech struct {
	err   error
	calls int
}

func (s *fakeSpeech) Synthesize(_ context.Context, text string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "http://localhost/artifacts/" + strings.ReplaceAll(text[:min(len(text), 8)], " ", "_") + ".mp3", nil
}

type fakeArtifacts struct {
	mu    sync.Mutex
	blobs map[string]string
}

func (a *fakeArtifacts) Put(data []byte, ext string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blobs == nil {
		a.blobs = make(map[string]string)
	}
	id := "artifact-" + string(rune('a'+len(a.blobs))) + ext
	a.blobs[id] = string(data)
	return id, nil
}

type recordingSink struct {
	mu    sync.Mutex
	leads []domain.StoredLead
}

func (s *recordingSink) DeliverLead(_ context.Context, lead domain.StoredLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return nil
}

type testEngine struct {
	*Engine
	gen       *fakeGenerator
	speech    *fakeSpeech
	artifacts *fakeArtifacts
	sink      *recordingSink
}

func newTestEngine(t *testing.T, maxClarify int) *testEngine {
	t.Helper()
	te := &testEngine{
		gen:       &fakeGenerator{},
		speech:    &fakeSpeech{},
		artifacts: &fakeArtifacts{},
		sink:      &recordingSink{},
	}
	e, err := NewEngine(Options{
		Script:     DefaultScript(),
		Generator:  te.gen,
		Speech:     te.speech,
		Artifacts:  te.artifacts,
		Sinks:      []LeadSink{te.sink},
		Picker:     FirstPicker{},
		MaxClarify: maxClarify,
	})
	require.NoError(t, err)
	te.Engine = e
	return te
}

func (te *testEngine) send(t *testing.T, session, msg string) *Reply {
	t.Helper()
	r, err := te.HandleTurn(context.Background(), session, msg)
	require.NoError(t, err)
	return r
}

// qualify walks a session through all four questions.
func (te *testEngine) qualify(t *testing.T, session string) *Reply {
	t.Helper()
	te.send(t, session, "hello")
	te.send(t, session, "Acme Corp")
	te.send(t, session, "Healthcare software")
	te.send(t, session, "Slow lead response")
	return te.send(t, session, "5000 dollars")
}

func (te *testEngine) session(id string) (step int, history []domain.Turn, lead map[string]string) {
	s := te.sessions.Acquire(id)
	defer te.sessions.Release(s)
	return s.step, s.history.Snapshot(), s.lead.Snapshot()
}
