package app

import "regexp"

// IntentType is the coarse routing decision for a raw user message: is the
// user talking to the assistant, or asking it to touch the document?
type IntentType string

const (
	IntentConsultation IntentType = "consultation"
	IntentEditing      IntentType = "editing"
	IntentAmbiguous    IntentType = "ambiguous"
)

// Classification is the result of ClassifyInput.
type Classification struct {
	Type            IntentType
	Confidence      float64
	MatchedPatterns []string
}

type intentPattern struct {
	name string
	re   *regexp.Regexp
}

// Pattern order is part of the contract: MatchedPatterns reports names in
// table order so callers (and tests) see a stable list.
var consultationPatterns = []intentPattern{
	{"temporal-personal", regexp.MustCompile(`(?i)\b(?:now|today|lately|recently|these days)\b.*\b(?:i am|i'm|i was|i've been|my\b)`)},
	{"first-person-state", regexp.MustCompile(`(?i)\bi(?:'m| am)\s+(?:feeling|thinking|trying|wondering|struggling|working on)\b`)},
	{"first-person-share", regexp.MustCompile(`(?i)\bi\s+(?:feel|think|wonder|hope|believe|remember|realized)\b`)},
	{"reflective", regexp.MustCompile(`(?i)\b(?:this reminds me|i wonder|looking back|reflecting on|it occurs to me)\b`)},
}

var editingPatterns = []intentPattern{
	{"imperative-verb", regexp.MustCompile(`(?i)^(?:please\s+|can you\s+|could you\s+)?(?:make|fix|improve|change|add|remove|delete|rewrite|edit|update|correct|revise|polish|shorten|expand)\b`)},
	{"document-part", regexp.MustCompile(`(?i)\bthis\s+(?:section|paragraph|sentence|document|note|heading|list|part)\b`)},
	{"quality-judgment", regexp.MustCompile(`(?i)\bthis\s+(?:is|seems|sounds|feels|needs)\b.*\b(?:unclear|confusing|wordy|awkward|repetitive|too long|too short|improvement|work)\b`)},
	{"positional", regexp.MustCompile(`(?i)\b(?:at the\s+(?:end|beginning|top|bottom)|before this|after this)\b`)},
}

// ClassifyInput scores raw input against the consultation and editing pattern
// families. If exactly one family matches, that type wins with high
// confidence. Mixed signals (or none) return IntentAmbiguous rather than
// guessing by majority count; downstream code must handle the ambiguous case
// explicitly.
func ClassifyInput(text string) Classification {
	var consult, edit []string
	for _, p := range consultationPatterns {
		if p.re.MatchString(text) {
			consult = append(consult, p.name)
		}
	}
	for _, p := range editingPatterns {
		if p.re.MatchString(text) {
			edit = append(edit, p.name)
		}
	}

	switch {
	case len(consult) > 0 && len(edit) == 0:
		return Classification{Type: IntentConsultation, Confidence: 0.9, MatchedPatterns: consult}
	case len(edit) > 0 && len(consult) == 0:
		return Classification{Type: IntentEditing, Confidence: 0.9, MatchedPatterns: edit}
	default:
		return Classification{Type: IntentAmbiguous, Confidence: 0.5, MatchedPatterns: []string{}}
	}
}
