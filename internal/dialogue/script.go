package dialogue

import (
	"errors"
	"fmt"
	"os"

	"github.com/ashureev/willow-sdr/internal/domain"
	"gopkg.in/yaml.v3"
)

// Question is one scripted qualifying question. Prompt and Variants are
// paraphrases of the same question.
type Question struct {
	Key      string   `yaml:"key"`
	Prompt   string   `yaml:"prompt"`
	Variants []string `yaml:"variants"`
}

// Phrasings returns the prompt followed by its variants.
func (q Question) Phrasings() []string {
	return append([]string{q.Prompt}, q.Variants...)
}

// FAQ is a canned answer selected by keyword.
type FAQ struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

// Script is the sales configuration injected into the dialogue: persona and
// knowledge text, the qualifying questions and every fixed reply.
type Script struct {
	Labels    Labels `yaml:"labels"`
	Persona   string `yaml:"persona"`
	Knowledge string `yaml:"knowledge"`

	Greeting     string     `yaml:"greeting"`
	Questions    []Question `yaml:"questions"`
	Clarify      []string   `yaml:"clarify"`
	Confirmation string     `yaml:"confirmation"`
	ReplySuffix  string     `yaml:"reply_suffix"`

	MediaKeywords []string `yaml:"media_keywords"`
	MediaReply    string   `yaml:"media_reply"`
	VideoKeywords []string `yaml:"video_keywords"`
	VideoReply    string   `yaml:"video_reply"`
	VideoURL      string   `yaml:"video_url"`
	FAQs          []FAQ    `yaml:"faqs"`
	Fillers       []string `yaml:"fillers"`

	EndKeywords        []string `yaml:"end_keywords"`
	ClosingReply       string   `yaml:"closing_reply"`
	UnavailableReply   string   `yaml:"unavailable_reply"`
	SummaryFailedReply string   `yaml:"summary_failed_reply"`
	EndedReply         string   `yaml:"ended_reply"`
}

// DefaultScript returns the built-in Willow script.
func DefaultScript() Script {
	return Script{
		Labels: Labels{User: "User", Bot: "Willow"},
		Persona: "You are Willow, an AI sales development representative for Willow Labs. " +
			"You qualify inbound website visitors, answer product questions honestly, " +
			"and guide promising prospects toward a call with a human account executive. " +
			"Never invent prices or commitments that are not in the knowledge section.",
		Knowledge: "Willow Labs builds voice and chat agents that qualify inbound leads 24/7. " +
			"Plans start at $499/month for one agent; enterprise pricing is custom. " +
			"Integrations: HubSpot, Salesforce, Pipedrive, Slack and Zapier. " +
			"Support: email and chat on all plans, a dedicated success manager on enterprise.",

		Greeting: "Hi, I'm Willow! Thanks for stopping by.",
		Questions: []Question{
			{
				Key:    domain.FieldCompany,
				Prompt: "What's the name of your company?",
				Variants: []string{
					"Which company are you with?",
					"Could you tell me the name of your company?",
				},
			},
			{
				Key:    domain.FieldDomain,
				Prompt: "What industry or domain does your company work in?",
				Variants: []string{
					"Which industry is your business in?",
					"What space does your company operate in?",
				},
			},
			{
				Key:    domain.FieldProblem,
				Prompt: "What problem are you hoping to solve?",
				Variants: []string{
					"What challenge brought you here today?",
					"Which problem would you most like us to help with?",
				},
			},
			{
				Key:    domain.FieldBudget,
				Prompt: "What budget do you have in mind for this?",
				Variants: []string{
					"Roughly what budget are you working with?",
					"Do you have a budget range in mind?",
				},
			},
		},
		Clarify: []string{
			"Could you tell me a bit more?",
			"I'd love a little more detail.",
			"Can you expand on that a little?",
		},
		Confirmation: "Thanks! So you're with {company} in {domain}, looking to solve {problem}, " +
			"with a budget of {budget}. Is there anything you'd like to know about how Willow can help?",
		ReplySuffix: "Reply as Willow in one or two short sentences. Be concise, human and high-impact, " +
			"and end with a question that moves the conversation forward.",

		MediaKeywords: []string{"demo", "show me", "screenshot", "what does it look like"},
		MediaReply:    "Here's a quick look at the Willow dashboard. Would you like to book a live walkthrough?",
		VideoKeywords: []string{"video", "youtube", "watch"},
		VideoReply:    "Here's a short demo video of Willow qualifying a lead. Let me know what you think!",
		VideoURL:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		FAQs: []FAQ{
			{
				Topic:    "pricing",
				Keywords: []string{"price", "pricing", "cost", "how much"},
				Answer:   "Plans start at $499 per month for one agent, and enterprise pricing is tailored to your volume.",
			},
			{
				Topic:    "support",
				Keywords: []string{"support", "help desk", "customer service"},
				Answer:   "Every plan includes email and chat support, and enterprise customers get a dedicated success manager.",
			},
			{
				Topic:    "integration",
				Keywords: []string{"integrat", "crm", "hubspot", "salesforce", "zapier"},
				Answer:   "Willow integrates with HubSpot, Salesforce, Pipedrive, Slack and Zapier out of the box.",
			},
			{
				Topic:    "features",
				Keywords: []string{"feature", "what can it do", "capabilit"},
				Answer:   "Willow answers questions, qualifies leads by voice or chat and hands summaries to your sales team.",
			},
		},
		Fillers: []string{
			"That's a great point. Tell me more about what success would look like for you.",
			"Interesting! What would you like to explore next?",
			"Got it. Is there anything else about your sales process I should know?",
		},

		EndKeywords: []string{
			"bye", "goodbye", "see you", "talk later", "thank you", "thankyou", "thanks",
			"end chat", "end conversation", "that's all", "that's it", "no more", "finish", "done",
		},
		ClosingReply:       "Thanks for chatting with me! I've shared your details with our team and someone will reach out shortly.",
		UnavailableReply:   "Sorry, I'm having trouble reaching my brain right now. Could you try again in a moment?",
		SummaryFailedReply: "Thanks for chatting! Our systems are a little busy right now, but our team will follow up with you soon.",
		EndedReply:         "This conversation has ended. Start a new chat any time!",
	}
}

// LoadScript returns DefaultScript overlaid with the YAML document at path.
// Keys absent from the file keep their defaults. An empty path yields the defaults.
func LoadScript(path string) (Script, error) {
	s := DefaultScript()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, fmt.Errorf("invalid script %s: %w", path, err)
	}
	return s, nil
}

// NumQuestions is the fixed length of the qualifying sequence.
const NumQuestions = 4

// Validate checks the invariants the state machine relies on.
func (s Script) Validate() error {
	if len(s.Questions) != NumQuestions {
		return fmt.Errorf("expected %d questions, got %d", NumQuestions, len(s.Questions))
	}
	want := []string{domain.FieldCompany, domain.FieldDomain, domain.FieldProblem, domain.FieldBudget}
	for i, q := range s.Questions {
		if q.Key != want[i] {
			return fmt.Errorf("question %d: expected key %q, got %q", i+1, want[i], q.Key)
		}
		if q.Prompt == "" {
			return fmt.Errorf("question %d: prompt is empty", i+1)
		}
	}
	if len(s.EndKeywords) == 0 {
		return errors.New("end_keywords cannot be empty")
	}
	if s.UnavailableReply == "" || s.ClosingReply == "" {
		return errors.New("unavailable_reply and closing_reply are required")
	}
	return nil
}
