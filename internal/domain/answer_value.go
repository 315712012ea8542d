package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags the variant held by an AnswerValue. It is persisted next to
// the encoded value so rows decode without their question.
type ValueKind string

const (
	ValueText        ValueKind = "text"
	ValueBool        ValueKind = "bool"
	ValueChoice      ValueKind = "choice"
	ValueMultiChoice ValueKind = "multi"
)

// AnswerValue is the tagged union of answer payloads:
// TextValue | BoolValue | ChoiceValue | MultiChoiceValue.
type AnswerValue interface {
	Kind() ValueKind
	// Encode returns the storage form: raw text, "true"/"false", the option,
	// or the comma-joined option list.
	Encode() string
}

type TextValue string

func (TextValue) Kind() ValueKind { return ValueText }
func (v TextValue) Encode() string { return string(v) }

type BoolValue bool

func (BoolValue) Kind() ValueKind { return ValueBool }
func (v BoolValue) Encode() string {
	if v {
		return "true"
	}
	return "false"
}

type ChoiceValue string

func (ChoiceValue) Kind() ValueKind { return ValueChoice }
func (v ChoiceValue) Encode() string { return string(v) }

// MultiChoiceValue is a set of selected options kept in selection order.
type MultiChoiceValue []string

func (MultiChoiceValue) Kind() ValueKind { return ValueMultiChoice }
func (v MultiChoiceValue) Encode() string { return strings.Join(v, ",") }

// DecodeAnswerValue rebuilds a value from its storage form.
func DecodeAnswerValue(kind ValueKind, raw string) (AnswerValue, error) {
	switch kind {
	case ValueText:
		return TextValue(raw), nil
	case ValueBool:
		switch raw {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
		return nil, fmt.Errorf("decode bool answer %q", raw)
	case ValueChoice:
		return ChoiceValue(raw), nil
	case ValueMultiChoice:
		return MultiChoiceValue(splitOptions(raw)), nil
	}
	return nil, fmt.Errorf("unknown answer value kind %q", kind)
}

// AnswerValueFromJSON maps a wire value onto the union: a JSON bool becomes
// BoolValue, an array of strings MultiChoiceValue, a string TextValue.
// CoerceAnswerValue settles the final variant against the question.
func AnswerValueFromJSON(raw json.RawMessage) (AnswerValue, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return TextValue(""), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return BoolValue(b), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return TextValue(s), nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return MultiChoiceValue(list), nil
	}
	return nil, fmt.Errorf("answer value must be a string, boolean or list of strings")
}

// CoerceAnswerValue converts v into the variant the question stores. It only
// rejects shapes that can never be a valid answer; whether the answer is
// complete is decided by CheckAnswer.
func CoerceAnswerValue(q Question, v AnswerValue) (AnswerValue, error) {
	if v == nil {
		v = TextValue("")
	}
	switch q.Type {
	case QuestionFreeText:
		switch v := v.(type) {
		case TextValue:
			return v, nil
		case ChoiceValue:
			return TextValue(v), nil
		}
		return nil, fmt.Errorf("free text answer must be text")
	case QuestionBoolean:
		switch v := v.(type) {
		case BoolValue:
			return v, nil
		case TextValue:
			return DecodeAnswerValue(ValueBool, strings.TrimSpace(string(v)))
		}
		return nil, fmt.Errorf("boolean answer must be true or false")
	case QuestionSingleChoice, QuestionMultiChoice:
		if q.SelectsMany() {
			switch v := v.(type) {
			case MultiChoiceValue:
				return MultiChoiceValue(dedupe(v)), nil
			case TextValue:
				return MultiChoiceValue(dedupe(splitOptions(string(v)))), nil
			case ChoiceValue:
				return MultiChoiceValue(dedupe(splitOptions(string(v)))), nil
			}
			return nil, fmt.Errorf("multi choice answer must be a list of options")
		}
		switch v := v.(type) {
		case ChoiceValue:
			return v, nil
		case TextValue:
			return ChoiceValue(strings.TrimSpace(string(v))), nil
		case MultiChoiceValue:
			if len(v) <= 1 {
				return ChoiceValue(strings.Join(v, "")), nil
			}
		}
		return nil, fmt.Errorf("choice answer must be a single option")
	}
	return nil, fmt.Errorf("unknown question type %q", q.Type)
}

func splitOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
