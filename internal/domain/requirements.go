package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// CheckAnswer applies the required-answer rule of q's type to the resolved
// answer a (nil when none exists) and returns the failure reason, or "" when
// the answer satisfies the rule.
func CheckAnswer(q Question, tier Tier, a *Answer) string {
	if a == nil {
		return "answer is required"
	}
	switch q.Type {
	case QuestionFreeText:
		if tier == TierPremium && a.Media != nil {
			return ""
		}
		v, ok := a.Value.(TextValue)
		if !ok || strings.TrimSpace(string(v)) == "" {
			return "answer must not be empty"
		}
	case QuestionBoolean:
		if _, ok := a.Value.(BoolValue); !ok {
			return `answer must be "true" or "false"`
		}
	case QuestionSingleChoice, QuestionMultiChoice:
		if q.SelectsMany() {
			v, ok := a.Value.(MultiChoiceValue)
			if !ok || len(v) == 0 {
				return "select at least one option"
			}
			for _, opt := range v {
				if !q.HasOption(opt) {
					return fmt.Sprintf("%q is not one of the options", opt)
				}
			}
			return ""
		}
		v, ok := a.Value.(ChoiceValue)
		if !ok || v == "" {
			return "select one option"
		}
		if !q.HasOption(string(v)) {
			return fmt.Sprintf("%q is not one of the options", string(v))
		}
	default:
		return fmt.Sprintf("unknown question type %q", q.Type)
	}
	return ""
}

// CheckAnswers evaluates every question against its resolved answer and
// returns the failures in question order.
func CheckAnswers(questions []Question, tier Tier, resolved map[string]Answer) []Problem {
	var problems []Problem
	for _, q := range questions {
		var a *Answer
		if r, ok := resolved[q.ID]; ok {
			a = &r
		}
		if reason := CheckAnswer(q, tier, a); reason != "" {
			problems = append(problems, Problem{QuestionID: q.ID, Reason: reason})
		}
	}
	return problems
}

// ValidateMedia checks an attachment reported by the media store.
func ValidateMedia(m Media) error {
	if m.Kind != MediaImage && m.Kind != MediaVideo {
		return fmt.Errorf("media kind must be image or video")
	}
	u, err := url.Parse(strings.TrimSpace(m.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("media url must be an absolute http(s) url")
	}
	return nil
}
