// Package reply classifies and handles the creator's responses to alerts.
package reply

import "strings"

// Kind is the classified intent of a creator reply.
type Kind int

const (
	// KindUnmatched means the text matched no known intent. Callers must
	// treat this as "not handled", never as a default action.
	KindUnmatched Kind = iota
	KindUsed
	KindMore
	KindNotInterested
	KindRemindLater
)

func (k Kind) String() string {
	switch k {
	case KindUsed:
		return "used"
	case KindMore:
		return "more"
	case KindNotInterested:
		return "not_interested"
	case KindRemindLater:
		return "remind_later"
	}
	return "unmatched"
}

// Keywords holds the phrase sets for each intent. The sets must stay
// disjoint; classification checks them in a fixed order so an overlapping
// phrase would silently shadow a later intent.
type Keywords struct {
	NotInterested []string
	RemindLater   []string
	Used          []string
	More          []string
}

// DefaultKeywords returns the built-in English phrase sets. The rejection
// set carries the negated forms of the other sets ("no more", "stop") so
// that checking rejections first keeps the sets disjoint in effect.
func DefaultKeywords() Keywords {
	return Keywords{
		NotInterested: []string{"not interested", "no thanks", "no more", "stop", "skip", "pass", "nope"},
		RemindLater:   []string{"remind", "later", "busy right now"},
		Used:          []string{"used", "posted", "done", "did it", "made it"},
		More:          []string{"more", "another", "different idea", "something else"},
	}
}

// Classifier matches reply text against keyword sets.
type Classifier struct {
	keywords Keywords
}

// NewClassifier creates a Classifier. Zero-value keyword sets fall back to
// the defaults.
func NewClassifier(kw Keywords) *Classifier {
	def := DefaultKeywords()
	if kw.NotInterested == nil {
		kw.NotInterested = def.NotInterested
	}
	if kw.RemindLater == nil {
		kw.RemindLater = def.RemindLater
	}
	if kw.Used == nil {
		kw.Used = def.Used
	}
	if kw.More == nil {
		kw.More = def.More
	}
	return &Classifier{keywords: kw}
}

// Classify returns the intent of the reply text. Matching is
// case-insensitive substring matching. Negative intents are checked first
// so "no more ideas please" reads as a rejection, not a request for more.
func (c *Classifier) Classify(text string) Kind {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return KindUnmatched
	}

	checks := []struct {
		kind    Kind
		phrases []string
	}{
		{KindNotInterested, c.keywords.NotInterested},
		{KindRemindLater, c.keywords.RemindLater},
		{KindUsed, c.keywords.Used},
		{KindMore, c.keywords.More},
	}
	for _, check := range checks {
		for _, phrase := range check.phrases {
			if strings.Contains(lower, phrase) {
				return check.kind
			}
		}
	}
	return KindUnmatched
}
