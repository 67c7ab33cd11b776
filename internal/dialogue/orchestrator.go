package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/willow-sdr/internal/domain"
	"github.com/ashureev/willow-sdr/internal/metrics"
	"github.com/google/uuid"
)

// mediaLinkPattern finds a playable video link embedded in generated text.
var mediaLinkPattern = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/\S+|youtu\.be/\S+|vimeo\.com/\S+|\S+\.mp4)`)

// Reply is the payload returned for every turn.
type Reply struct {
	Reply      string             `json:"reply"`
	AudioURL   *string            `json:"audio_url"`
	ShowImage  bool               `json:"showImage"`
	Lead       domain.LeadSummary `json:"lead"`
	End        bool               `json:"end"`
	YoutubeURL *string            `json:"youtube_url"`
	Step       int                `json:"step"`
}

// Options configures an Engine. Only Script is required.
type Options struct {
	Script     Script
	Generator  Generator
	Speech     Synthesizer
	Artifacts  ArtifactStore
	Sinks      []LeadSink
	Picker     Picker
	MaxClarify int
	Logger     *slog.Logger
}

// Engine is the turn orchestrator. It is safe for concurrent use; turns for
// the same session are serialized and turns for different sessions run in parallel.
type Engine struct {
	script     Script
	gen        Generator
	speech     Synthesizer
	sinks      []LeadSink
	sessions   *SessionStore
	qualifier  *Qualifier
	extractor  *Extractor
	terminator Classifier
	video      Classifier
	logger     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Script.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		script:     opts.Script,
		gen:        opts.Generator,
		speech:     opts.Speech,
		sinks:      opts.Sinks,
		sessions:   NewSessionStore(),
		qualifier:  NewQualifier(opts.Script, opts.Picker, opts.MaxClarify),
		extractor:  NewExtractor(opts.Generator, opts.Artifacts, opts.Script, logger),
		terminator: NewTerminationDetector(opts.Script.EndKeywords),
		video:      KeywordClassifier{Intent: IntentVideo, Keywords: opts.Script.VideoKeywords},
		logger:     logger,
	}, nil
}

// HandleTurn processes one user message for the session.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, message string) (*Reply, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess := e.sessions.Acquire(sessionID)
	defer e.sessions.Release(sess)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))

	if sess.terminated {
		metrics.TurnsTotal.WithLabelValues("ended").Inc()
		return &Reply{Reply: e.script.EndedReply, Lead: e.leadView(sess), End: true, Step: sess.step}, nil
	}

	sess.history.Append(domain.RoleUser, text)

	if sess.step > StepGreeting {
		if _, ok := e.terminator.Classify(text); ok {
			return e.finish(ctx, sess), nil
		}
		if _, ok := e.video.Classify(text); ok {
			reply := &Reply{Reply: e.script.VideoReply, YoutubeURL: domain.StringPtr(e.script.VideoURL)}
			return e.respond(ctx, sess, reply, "video"), nil
		}
	}

	out, err := e.qualifier.Advance(sess, text)
	if err != nil {
		return nil, err
	}
	if out.Handled {
		return e.respond(ctx, sess, &Reply{Reply: out.Reply, ShowImage: out.ShowImage}, out.Path), nil
	}

	if e.gen == nil {
		return e.respond(ctx, sess, &Reply{Reply: e.qualifier.Filler()}, "filler"), nil
	}

	prompt := AssemblePrompt(PromptInput{
		Persona:   e.script.Persona,
		Knowledge: e.script.Knowledge,
		History:   sess.history.Snapshot(),
		Step:      sess.step,
		Lead:      sess.lead.Snapshot(),
		Labels:    e.script.Labels,
		Suffix:    e.script.ReplySuffix,
	})
	generated, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("generative backend unavailable", "session_id", sess.id, "error", err)
		metrics.TurnsTotal.WithLabelValues("unavailable").Inc()
		return &Reply{Reply: e.script.UnavailableReply, Lead: e.leadView(sess), Step: sess.step}, nil
	}

	reply := &Reply{Reply: strings.TrimSpace(generated)}
	if link := mediaLinkPattern.FindString(reply.Reply); link != "" {
		reply.YoutubeURL = &link
	}
	return e.respond(ctx, sess, reply, "generated"), nil
}

// respond records the bot turn and completes the payload.
func (e *Engine) respond(ctx context.Context, sess *Session, reply *Reply, path string) *Reply {
	sess.history.Append(domain.RoleBot, reply.Reply)
	reply.AudioURL = e.synthesize(ctx, sess, reply.Reply)
	reply.Lead = e.leadView(sess)
	reply.Step = sess.step
	metrics.TurnsTotal.WithLabelValues(path).Inc()
	return reply
}

// finish runs summary extraction and hands the lead off.
func (e *Engine) finish(ctx context.Context, sess *Session) *Reply {
	ex := e.extractor.Extract(ctx, sess)
	if ex.Failed {
		metrics.LeadsCompleted.WithLabelValues("unavailable").Inc()
		metrics.TurnsTotal.WithLabelValues("end").Inc()
		return &Reply{Reply: ex.Reply, Lead: e.leadView(sess), End: true, Step: sess.step}
	}
	metrics.LeadsCompleted.WithLabelValues("extracted").Inc()
	metrics.TurnsTotal.WithLabelValues("end").Inc()

	e.deliver(ctx, domain.StoredLead{
		ID:         uuid.NewString(),
		SessionID:  sess.id,
		ArtifactID: ex.ArtifactID,
		Lead:       *ex.Summary,
		CreatedAt:  time.Now().UTC(),
	})

	return &Reply{
		Reply:    ex.Reply,
		AudioURL: e.synthesize(ctx, sess, ex.Reply),
		Lead:     *ex.Summary,
		End:      true,
		Step:     sess.step,
	}
}

func (e *Engine) deliver(ctx context.Context, lead domain.StoredLead) {
	// The handoff must survive a client that hangs up after saying goodbye.
	ctx = context.WithoutCancel(ctx)
	for _, sink := range e.sinks {
		if err := sink.DeliverLead(ctx, lead); err != nil {
			e.logger.Error("lead handoff failed", "lead_id", lead.ID, "session_id", lead.SessionID, "error", err)
		}
	}
}

func (e *Engine) synthesize(ctx context.Context, sess *Session, text string) *string {
	if e.speech == nil || text == "" {
		return nil
	}
	url, err := e.speech.Synthesize(ctx, text)
	if err != nil {
		metrics.SynthesisFailures.Inc()
		e.logger.Warn("speech synthesis failed", "session_id", sess.id, "error", err)
		return nil
	}
	return &url
}

func (e *Engine) leadView(sess *Session) domain.LeadSummary {
	if sess.summary != nil {
		return *sess.summary
	}
	return sess.lead.View()
}

// Lead returns the session's lead. A non-empty closing message ends an active
// conversation first. A closing message is ignored before the greeting (step 0)
// since there is nothing to summarize, and after termination. Once a summary
// exists it is returned and the session is reset, completing the handoff.
func (e *Engine) Lead(ctx context.Context, sessionID, closing string) (*Reply, error) {
	sess := e.sessions.Acquire(sessionID)
	defer e.sessions.Release(sess)

	closing = strings.TrimSpace(closing)
	var reply *Reply
	if closing != "" && !sess.terminated && sess.step > StepGreeting {
		sess.history.Append(domain.RoleUser, closing)
		reply = e.finish(ctx, sess)
	}

	if sess.summary != nil {
		if reply == nil {
			reply = &Reply{Lead: *sess.summary, End: true, Step: sess.step}
		}
		sess.reset()
		return reply, nil
	}
	if reply != nil {
		return reply, nil
	}
	return &Reply{Lead: sess.lead.View(), End: sess.terminated, Step: sess.step}, nil
}

// Reset clears the session to its initial state.
func (e *Engine) Reset(sessionID string) {
	sess := e.sessions.Acquire(sessionID)
	defer e.sessions.Release(sess)
	sess.reset()
}

// Sweep evicts idle sessions and returns how many were removed.
func (e *Engine) Sweep(ttl time.Duration) int {
	n := e.sessions.Sweep(ttl)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))
	return n
}

// ActiveSessions returns the number of live sessions.
func (e *Engine) ActiveSessions() int {
	return e.sessions.Len()
}
