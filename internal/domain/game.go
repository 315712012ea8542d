package domain

import (
	"net/mail"
	"strings"
)

// GameDetails is the creator-editable metadata of a game.
type GameDetails struct {
	Name               string   `json:"name"`
	Occasion           string   `json:"occasion"`
	InterviewedPartner Partner  `json:"interviewedPartner"`
	PlayingPartner     *Partner `json:"playingPartner,omitempty"`
}

// NormalizeGameDetails trims the details and checks partner emails. The
// interviewed partner's email is mandatory for the whole life of a game.
func NormalizeGameDetails(d GameDetails) (GameDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Occasion = strings.TrimSpace(d.Occasion)

	var problems []Problem
	interviewed, reason := normalizePartner(d.InterviewedPartner)
	if reason != "" {
		problems = append(problems, Problem{Field: "interviewedPartner.email", Reason: reason})
	}
	d.InterviewedPartner = interviewed

	if d.PlayingPartner != nil {
		playing, reason := normalizePartner(*d.PlayingPartner)
		switch {
		case playing.Email == "" && playing.Name == "":
			d.PlayingPartner = nil
		case reason != "":
			problems = append(problems, Problem{Field: "playingPartner.email", Reason: reason})
		default:
			d.PlayingPartner = &playing
		}
	}
	if len(problems) > 0 {
		return GameDetails{}, ValidationFailed(problems)
	}
	return d, nil
}

// Apply copies the details onto g.
func (d GameDetails) Apply(g Game) Game {
	g.Name = d.Name
	g.Occasion = d.Occasion
	g.InterviewedPartner = d.InterviewedPartner
	if d.PlayingPartner != nil {
		p := *d.PlayingPartner
		g.PlayingPartner = &p
	} else {
		g.PlayingPartner = nil
	}
	return g
}

func normalizePartner(p Partner) (Partner, string) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return p, "email is required"
	}
	addr, err := mail.ParseAddress(p.Email)
	if err != nil || addr.Address != p.Email {
		return p, "email is not a valid address"
	}
	return p, ""
}

// Charge is the request handed to the payment gateway before publishing.
type Charge struct {
	GameID      string
	CreatorID   string
	Tier        Tier
	AmountCents int
}

// Invite is what the notifier needs to deliver an invitation.
type Invite struct {
	GameID     string `json:"gameId"`
	GameName   string `json:"gameName"`
	AccessCode string `json:"accessCode"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	CreatorID  string `json:"creatorId"`
	Link       string `json:"link"`
}
