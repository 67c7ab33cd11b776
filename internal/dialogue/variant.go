package dialogue

import "math/rand/v2"

// Picker chooses one of several interchangeable phrasings.
type Picker interface {
	Pick(options []string) string
}

// RandomPicker picks uniformly at random.
type RandomPicker struct{}

// Pick returns a random element of options, or "" when options is empty.
func (RandomPicker) Pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.IntN(len(options))]
}

// FirstPicker always picks the first option. Tests use it for stable replies.
type FirstPicker struct{}

// Pick returns options[0], or "" when options is empty.
func (FirstPicker) Pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[0]
}
