package domain

import (
	"strings"
	"time"
)

// Tier is the payment level chosen when a game is published.
type Tier string

const (
	TierNone    Tier = "none"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierNone, TierBasic, TierPremium:
		return true
	}
	return false
}

// Payable reports whether a game can be published with t.
func (t Tier) Payable() bool {
	return t == TierBasic || t == TierPremium
}

// Partner identifies one of the two invited parties of a game.
type Partner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Game is the aggregate root of one quiz between a creator and a partner.
type Game struct {
	ID                 string    `json:"id"`
	CreatorID          string    `json:"creatorId"`
	InterviewedPartner Partner   `json:"interviewedPartner"`
	PlayingPartner     *Partner  `json:"playingPartner,omitempty"`
	Name               string    `json:"name"`
	Occasion           string    `json:"occasion"`
	Tier               Tier      `json:"tier"`
	Status             Status    `json:"status"`
	AccessCode         string    `json:"accessCode,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// GameSummary is the dashboard projection of a game.
type GameSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Occasion      string    `json:"occasion"`
	Status        Status    `json:"status"`
	Tier          Tier      `json:"tier"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QuestionType selects how a question is answered.
type QuestionType string

const (
	QuestionFreeText     QuestionType = "free_text"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionBoolean      QuestionType = "boolean"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionFreeText, QuestionSingleChoice, QuestionMultiChoice, QuestionBoolean:
		return true
	}
	return false
}

// HasOptions reports whether questions of type t carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionSingleChoice || t == QuestionMultiChoice
}

// Question is a single prompt of a game's question set.
type Question struct {
	ID            string       `json:"id"`
	GameID        string       `json:"gameId"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	OrderPosition int          `json:"orderPosition"`
	Options       []string     `json:"options,omitempty"`
	AllowMultiple bool         `json:"allowMultiple"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// SelectsMany reports whether the question accepts more than one option.
func (q Question) SelectsMany() bool {
	return q.Type == QuestionMultiChoice && q.AllowMultiple
}

// HasOption reports whether opt is one of the question's options.
func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// MediaKind is the kind of an uploaded media attachment.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media references an attachment that the media store finished uploading.
type Media struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Correctness is the creator's review mark on an answer.
type Correctness string

const (
	Unmarked  Correctness = "unmarked"
	Correct   Correctness = "correct"
	Incorrect Correctness = "incorrect"
)

// CorrectnessOf maps a review decision to its mark.
func CorrectnessOf(correct bool) Correctness {
	if correct {
		return Correct
	}
	return Incorrect
}

// Answer is one saved answer row. A question may own many rows; the one with
// the greatest (CreatedAt, Seq) is authoritative.
type Answer struct {
	ID          string      `json:"id"`
	QuestionID  string      `json:"questionId"`
	Value       AnswerValue `json:"-"`
	Media       *Media      `json:"media,omitempty"`
	Correctness Correctness `json:"correctness"`
	CreatedAt   time.Time   `json:"createdAt"`
	// Seq is a store-assigned counter that orders rows sharing a timestamp.
	Seq int64 `json:"-"`
}

// After reports whether a was written after b.
func (a Answer) After(b Answer) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

// Actor is the caller of a core operation as reported by the identity provider.
type Actor struct {
	UserID string
	Email  string
}

// Role is the part an actor plays in a particular game.
type Role string

const (
	RoleCreator            Role = "creator"
	RoleInterviewedPartner Role = "interviewed_partner"
	RolePlayingPartner     Role = "playing_partner"
)

// HasRole reports whether actor holds role in g. An actor may hold several
// roles when the same identity is used for more than one party.
func (g Game) HasRole(actor Actor, role Role) bool {
	switch role {
	case RoleCreator:
		return actor.UserID != "" && actor.UserID == g.CreatorID
	case RoleInterviewedPartner:
		return sameEmail(actor.Email, g.InterviewedPartner.Email)
	case RolePlayingPartner:
		return g.PlayingPartner != nil && sameEmail(actor.Email, g.PlayingPartner.Email)
	}
	return false
}

// IsParty reports whether actor holds any role in g.
func (g Game) IsParty(actor Actor) bool {
	return g.HasRole(actor, RoleCreator) ||
		g.HasRole(actor, RoleInterviewedPartner) ||
		g.HasRole(actor, RolePlayingPartner)
}

func sameEmail(a, b string) bool {
	a = strings.TrimSpace(a)
	return a != "" && strings.EqualFold(a, strings.TrimSpace(b))
}
