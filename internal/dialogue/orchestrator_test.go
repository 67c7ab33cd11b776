package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/willow-sdr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstMessageGreetsAndAsksFirstQuestion(t *testing.T) {
	for _, first := range []string{"hello", "bye", "I want pricing", "x"} {
		t.Run(first, func(t *testing.T) {
			te := newTestEngine(t, DefaultMaxClarify)

			r := te.send(t, "s1", first)

			assert.Equal(t, 1, r.Step)
			assert.Contains(t, r.Reply, DefaultScript().Questions[0].Prompt)
			assert.False(t, r.End)
			assert.Zero(t, te.gen.extractCount())
		})
	}
}

func TestAnswerAdvancesAndStoresField(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.send(t, "s1", "hi")

	r := te.send(t, "s1", "Acme Corp")

	assert.Equal(t, 2, r.Step)
	assert.Contains(t, r.Reply, DefaultScript().Questions[1].Prompt)
	require.NotNil(t, r.Lead.Company)
	assert.Equal(t, "Acme Corp", *r.Lead.Company)

	_, _, lead := te.session("s1")
	assert.Equal(t, "Acme Corp", lead[domain.FieldCompany])
}

func TestEachStepStoresUnderItsKey(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.send(t, "s1", "hi")

	answers := []string{"Acme Corp", "Healthcare software", "Slow lead response", "5000 dollars"}
	for i, a := range answers {
		r := te.send(t, "s1", a)
		assert.Equal(t, i+2, r.Step, "answer %q", a)

		_, _, lead := te.session("s1")
		assert.Equal(t, a, lead[DefaultScript().Questions[i].Key])
	}
}

func TestShortAnswerNeverAdvancesWhenUnbounded(t *testing.T) {
	te := newTestEngine(t, 0)
	te.send(t, "s1", "hi")

	for range 6 {
		r := te.send(t, "s1", "Acme")
		assert.Equal(t, 1, r.Step)
		assert.Contains(t, r.Reply, DefaultScript().Clarify[0])
		assert.Contains(t, r.Reply, DefaultScript().Questions[0].Prompt)
	}

	_, _, lead := te.session("s1")
	assert.Equal(t, "Acme", lead[domain.FieldCompany])

	r := te.send(t, "s1", "Acme Corporation")
	assert.Equal(t, 2, r.Step)
}

func TestShortAnswerForcedForwardAfterClarifyLimit(t *testing.T) {
	te := newTestEngine(t, 2)
	te.send(t, "s1", "hi")

	assert.Equal(t, 1, te.send(t, "s1", "Acme").Step)
	assert.Equal(t, 1, te.send(t, "s1", "Acme").Step)
	r := te.send(t, "s1", "Acme")
	assert.Equal(t, 2, r.Step)
	assert.Equal(t, "Acme", *r.Lead.Company)

	// The attempt counter starts over for the next question.
	assert.Equal(t, 2, te.send(t, "s1", "Healthcare").Step)
}

func TestConfirmationQuotesAllFields(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)

	r := te.qualify(t, "s1")

	assert.Equal(t, StepOpen, r.Step)
	for _, v := range []string{"Acme Corp", "Healthcare software", "Slow lead response", "5000 dollars"} {
		assert.Contains(t, r.Reply, v)
	}
	assert.Empty(t, te.gen.prompts, "scripted steps must not call the backend")
}

func TestOpenDialogueUsesGenerator(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")

	r := te.send(t, "s1", "How does onboarding work for a small team?")

	assert.Equal(t, "Happy to help with that. What matters most to you?", r.Reply)
	require.NotNil(t, r.AudioURL)
	require.Len(t, te.gen.prompts, 1)
	prompt := te.gen.prompts[0]
	assert.Contains(t, prompt, "User: How does onboarding work for a small team?")
	assert.Contains(t, prompt, "Current step: 5")
	assert.Contains(t, prompt, "company: Acme Corp")

	_, history, _ := te.session("s1")
	assert.Equal(t, domain.Turn{Role: domain.RoleBot, Text: r.Reply}, history[len(history)-1])
}

func TestCannedRepliesSkipGenerator(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")

	media := te.send(t, "s1", "Can you show me the dashboard?")
	assert.True(t, media.ShowImage)
	assert.Equal(t, DefaultScript().MediaReply, media.Reply)

	faq := te.send(t, "s1", "What is the pricing like?")
	assert.False(t, faq.ShowImage)
	assert.Equal(t, DefaultScript().FAQs[0].Answer, faq.Reply)

	video := te.send(t, "s1", "Is there a video I could see?")
	require.NotNil(t, video.YoutubeURL)
	assert.Equal(t, DefaultScript().VideoURL, *video.YoutubeURL)

	assert.Empty(t, te.gen.prompts)
}

func TestGeneratedMediaLinkIsExtracted(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.gen.chat = func(context.Context, string) (string, error) {
		return "Take a look at https://youtu.be/abc123 for a walkthrough.", nil
	}
	te.qualify(t, "s1")

	r := te.send(t, "s1", "How would onboarding go for us?")

	require.NotNil(t, r.YoutubeURL)
	assert.Equal(t, "https://youtu.be/abc123", *r.YoutubeURL)
}

func TestBackendFailureReturnsUnavailable(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.gen.chat = func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	te.qualify(t, "s1")
	speechCalls := te.speech.calls

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r, err := te.HandleTurn(ctx, "s1", "How would onboarding go for us?")

	require.NoError(t, err)
	assert.Equal(t, DefaultScript().UnavailableReply, r.Reply)
	assert.Nil(t, r.AudioURL)
	assert.False(t, r.End)
	assert.Equal(t, speechCalls, te.speech.calls)

	_, history, _ := te.session("s1")
	last := history[len(history)-1]
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Text: "How would onboarding go for us?"}, last)
}

func TestSpeechFailureDegradesToNullAudio(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.speech.err = fmt.Errorf("tts offline")

	r := te.send(t, "s1", "hello")

	assert.Nil(t, r.AudioURL)
	assert.Contains(t, r.Reply, DefaultScript().Questions[0].Prompt)
}

func TestTerminationExtractsOnce(t *testing.T) {
	for _, kw := range []string{"bye", "thanks", "that's all"} {
		t.Run(kw, func(t *testing.T) {
			te := newTestEngine(t, DefaultMaxClarify)
			te.qualify(t, "s1")

			r := te.send(t, "s1", kw)
			assert.True(t, r.End)
			require.NotNil(t, r.Lead.Summary)
			assert.Equal(t, "Acme wants faster lead response.", *r.Lead.Summary)
			assert.Equal(t, DefaultScript().ClosingReply, r.Reply)
			assert.Equal(t, 1, te.gen.extractCount())

			again := te.send(t, "s1", "hello again")
			assert.True(t, again.End)
			assert.Equal(t, DefaultScript().EndedReply, again.Reply)
			assert.Equal(t, 1, te.gen.extractCount())
		})
	}
}

func TestByeAtFirstQuestionEndsWithSummary(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.send(t, "s1", "hi")
	te.send(t, "s1", "Acme Corp")

	r := te.send(t, "s1", "bye")

	assert.True(t, r.End)
	require.NotNil(t, r.Lead.Summary)
}

func TestSummaryConversationMatchesHistory(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")

	r := te.send(t, "s1", "ok bye")

	_, history, _ := te.session("s1")
	assert.Equal(t, history, r.Lead.Conversation)
	last := r.Lead.Conversation[len(r.Lead.Conversation)-1]
	assert.Equal(t, domain.Turn{Role: domain.RoleBot, Text: DefaultScript().ClosingReply}, last)
}

func TestTerminationPersistsArtifactAndHandsOff(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")

	te.send(t, "s1", "goodbye")

	require.Len(t, te.sink.leads, 1)
	stored := te.sink.leads[0]
	assert.Equal(t, "s1", stored.SessionID)
	assert.NotEmpty(t, stored.ID)
	require.NotEmpty(t, stored.ArtifactID)
	assert.Equal(t, "Acme wants faster lead response.", te.artifacts.blobs[stored.ArtifactID])
}

func TestMalformedSummaryFallsBack(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.gen.summary = func(context.Context, string) (string, error) {
		return "The prospect seems keen on a demo.", nil
	}
	te.qualify(t, "s1")

	r := te.send(t, "s1", "thanks, bye")

	assert.True(t, r.End)
	require.NotNil(t, r.Lead.Summary)
	assert.Equal(t, "The prospect seems keen on a demo.", *r.Lead.Summary)
	assert.Equal(t, "Acme Corp", *r.Lead.Company)
	assert.Equal(t, "5000 dollars", *r.Lead.Budget)
	assert.Nil(t, r.Lead.AgentSummary)
	assert.Equal(t, "thanks, bye", *r.Lead.UserLastMessage)
}

func TestWrappedSummaryKeepsCollectedLead(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	raw := `{"lead": {"company": "Other Inc", "summary": "Keen on a demo."}}`
	te.gen.summary = func(context.Context, string) (string, error) { return raw, nil }
	te.qualify(t, "s1")

	r := te.send(t, "s1", "bye")

	assert.True(t, r.End)
	require.NotNil(t, r.Lead.Company)
	assert.Equal(t, "Acme Corp", *r.Lead.Company)
	assert.Equal(t, "5000 dollars", *r.Lead.Budget)
	require.NotNil(t, r.Lead.Summary)
	assert.Equal(t, raw, *r.Lead.Summary)

	require.Len(t, te.sink.leads, 1)
	stored := te.sink.leads[0]
	assert.Equal(t, "Acme Corp", *stored.Lead.Company)
	assert.Equal(t, raw, te.artifacts.blobs[stored.ArtifactID])
}

func TestPartialSummaryFilledFromLead(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.gen.summary = func(context.Context, string) (string, error) {
		return `{"Summary": "Acme wants faster lead response.", "company": null}`, nil
	}
	te.qualify(t, "s1")

	r := te.send(t, "s1", "bye")

	require.NotNil(t, r.Lead.Company)
	assert.Equal(t, "Acme Corp", *r.Lead.Company)
	assert.Equal(t, "Acme wants faster lead response.", *r.Lead.Summary)
}

func TestSummaryBackendFailureTerminatesWithoutLead(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.gen.summary = failing(errBackend)
	te.qualify(t, "s1")

	r := te.send(t, "s1", "bye")

	assert.True(t, r.End)
	assert.Equal(t, DefaultScript().SummaryFailedReply, r.Reply)
	assert.Nil(t, r.Lead.Summary)
	assert.Nil(t, r.AudioURL)
	assert.Empty(t, te.sink.leads)

	again := te.send(t, "s1", "are you there?")
	assert.True(t, again.End)
	assert.Equal(t, 1, te.gen.extractCount())
}

func TestResetStartsOver(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")
	te.send(t, "s1", "bye")

	te.Reset("s1")

	step, history, lead := te.session("s1")
	assert.Zero(t, step)
	assert.Empty(t, history)
	assert.Empty(t, lead)

	r := te.send(t, "s1", "hello")
	assert.Equal(t, 1, r.Step)
	assert.False(t, r.End)
}

func TestLeadReturnsPartialRecord(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.send(t, "s1", "hi")
	te.send(t, "s1", "Acme Corp")

	r, err := te.Lead(context.Background(), "s1", "")

	require.NoError(t, err)
	assert.False(t, r.End)
	assert.Equal(t, "Acme Corp", *r.Lead.Company)
	assert.Nil(t, r.Lead.Summary)
	assert.Zero(t, te.gen.extractCount())
}

func TestLeadWithClosingMessageExtractsAndResets(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")

	r, err := te.Lead(context.Background(), "s1", "That's everything from me")

	require.NoError(t, err)
	assert.True(t, r.End)
	require.NotNil(t, r.Lead.Summary)
	assert.Equal(t, 1, te.gen.extractCount())

	step, history, _ := te.session("s1")
	assert.Zero(t, step)
	assert.Empty(t, history)
}

func TestLeadIgnoresClosingMessageBeforeGreeting(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)

	r, err := te.Lead(context.Background(), "fresh", "bye")

	require.NoError(t, err)
	assert.False(t, r.End)
	assert.Nil(t, r.Lead.Summary)
	assert.Zero(t, te.gen.extractCount())
	assert.Empty(t, te.sink.leads)

	step, history, _ := te.session("fresh")
	assert.Zero(t, step)
	assert.Empty(t, history)
}

func TestEmptyMessageRejected(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)

	_, err := te.HandleTurn(context.Background(), "s1", "   ")

	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, te.ActiveSessions())
}

func TestInvalidStepIsStateError(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	s := te.sessions.Acquire("s1")
	s.step = -3
	te.sessions.Release(s)

	_, err := te.HandleTurn(context.Background(), "s1", "hello")

	require.ErrorIs(t, err, ErrSessionState)
}

func TestHistoryNeverExceedsLimit(t *testing.T) {
	te := newTestEngine(t, DefaultMaxClarify)
	te.qualify(t, "s1")

	for i := range 25 {
		te.send(t, "s1", fmt.Sprintf("Tell me about onboarding option %d", i))
		_, history, _ := te.session("s1")
		require.LessOrEqual(t, len(history), MaxHistory)
	}
}

func TestNoGeneratorUsesFiller(t *testing.T) {
	e, err := NewEngine(Options{Script: DefaultScript(), Picker: FirstPicker{}})
	require.NoError(t, err)
	ctx := context.Background()
	for _, m := range []string{"hi", "Acme Corp", "Healthcare software", "Slow lead response", "5000 dollars"} {
		_, err := e.HandleTurn(ctx, "s1", m)
		require.NoError(t, err)
	}

	r, err := e.HandleTurn(ctx, "s1", "How does onboarding work?")
	require.NoError(t, err)
	assert.Equal(t, DefaultScript().Fillers[0], r.Reply)

	end, err := e.HandleTurn(ctx, "s1", "bye")
	require.NoError(t, err)
	assert.True(t, end.End)
	require.NotNil(t, end.Lead.Summary)
	assert.Contains(t, *end.Lead.Summary, "company: Acme Corp")
}

func TestConcurrentTurnsAreSerializedPerSession(t *testing.T) {
	gen := &fakeGenerator{chat: func(context.Context, string) (string, error) {
		time.Sleep(time.Millisecond)
		return "Noted. What else would help?", nil
	}}
	e, err := NewEngine(Options{Script: DefaultScript(), Generator: gen, Picker: FirstPicker{}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for s := range 4 {
		id := fmt.Sprintf("session-%d", s)
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.HandleTurn(context.Background(), id, fmt.Sprintf("Our team needs option %d", i))
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 4, e.ActiveSessions())
	for s := range 4 {
		sess := e.sessions.Acquire(fmt.Sprintf("session-%d", s))
		assert.LessOrEqual(t, sess.history.Len(), MaxHistory)
		for _, turn := range sess.history.Snapshot() {
			assert.False(t, strings.TrimSpace(turn.Text) == "")
		}
		e.sessions.Release(sess)
	}
}
