package dialogue

import "strings"

// Intent is a tagged classification of a user utterance.
type Intent string

const (
	IntentEnd   Intent = "end"
	IntentVideo Intent = "video"
	IntentMedia Intent = "media"
)

// FAQIntent returns the intent for a canned FAQ topic.
func FAQIntent(topic string) Intent {
	return Intent("faq:" + topic)
}

// Topic returns the FAQ topic carried by the intent, if any.
func (i Intent) Topic() (string, bool) {
	return strings.CutPrefix(string(i), "faq:")
}

// Classifier maps an utterance to an intent.
type Classifier interface {
	Classify(text string) (Intent, bool)
}

// KeywordClassifier reports Intent when the lower-cased text contains any keyword.
// Matching is plain substring containment, so "thanks for the question" still
// counts as a goodbye.
type KeywordClassifier struct {
	Intent   Intent
	Keywords []string
}

// Classify implements Classifier.
func (k KeywordClassifier) Classify(text string) (Intent, bool) {
	lower := strings.ToLower(text)
	for _, kw := range k.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return k.Intent, true
		}
	}
	return "", false
}

// Chain tries each classifier in order and returns the first match.
type Chain []Classifier

// Classify implements Classifier.
func (c Chain) Classify(text string) (Intent, bool) {
	for _, cl := range c {
		if in, ok := cl.Classify(text); ok {
			return in, true
		}
	}
	return "", false
}

// NewTerminationDetector builds the end-of-conversation classifier.
func NewTerminationDetector(keywords []string) Classifier {
	return KeywordClassifier{Intent: IntentEnd, Keywords: keywords}
}

// newCannedClassifier orders media before FAQ topics, in script order.
func newCannedClassifier(s Script) Classifier {
	chain := Chain{KeywordClassifier{Intent: IntentMedia, Keywords: s.MediaKeywords}}
	for _, f := range s.FAQs {
		chain = append(chain, KeywordClassifier{Intent: FAQIntent(f.Topic), Keywords: f.Keywords})
	}
	return chain
}
