package domain

import (
	"fmt"
	"strings"
)

// QuestionDraft is the user-editable part of a question.
type QuestionDraft struct {
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	AllowMultiple bool         `json:"allowMultiple"`
}

// NormalizeQuestionDraft trims and validates a question definition.
// Options are kept only for choice types and must number at least two.
func NormalizeQuestionDraft(d QuestionDraft) (QuestionDraft, error) {
	d.Text = strings.TrimSpace(d.Text)
	if d.Text == "" {
		return QuestionDraft{}, InvalidQuestion("question text is required")
	}
	if !d.Type.Valid() {
		return QuestionDraft{}, InvalidQuestion(fmt.Sprintf("unknown question type %q", d.Type))
	}
	if !d.Type.HasOptions() {
		d.Options = nil
		d.AllowMultiple = false
		return d, nil
	}
	if d.Type != QuestionMultiChoice {
		d.AllowMultiple = false
	}

	options := make([]string, 0, len(d.Options))
	seen := make(map[string]struct{}, len(d.Options))
	for _, opt := range d.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return QuestionDraft{}, InvalidQuestion("options must not be empty")
		}
		// multi-select answers are stored comma-joined
		if strings.Contains(opt, ",") {
			return QuestionDraft{}, InvalidQuestion(fmt.Sprintf("option %q must not contain a comma", opt))
		}
		if _, dup := seen[opt]; dup {
			return QuestionDraft{}, InvalidQuestion(fmt.Sprintf("duplicate option %q", opt))
		}
		seen[opt] = struct{}{}
		options = append(options, opt)
	}
	if len(options) < 2 {
		return QuestionDraft{}, InvalidQuestion("choice questions need at least two options")
	}
	d.Options = options
	return d, nil
}

// Apply copies the draft onto q, leaving identity and position untouched.
func (d QuestionDraft) Apply(q Question) Question {
	q.Text = d.Text
	q.Type = d.Type
	q.Options = append([]string(nil), d.Options...)
	q.AllowMultiple = d.AllowMultiple
	return q
}
