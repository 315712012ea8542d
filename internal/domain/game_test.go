package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeGameDetails(t *testing.T) {
	d, err := NormalizeGameDetails(GameDetails{
		Name:               " Ten years ",
		InterviewedPartner: Partner{Name: " Mia ", Email: " mia@example.com "},
		PlayingPartner:     &Partner{},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.Name != "Ten years" || d.InterviewedPartner.Email != "mia@example.com" || d.InterviewedPartner.Name != "Mia" {
		t.Fatalf("unexpected details %+v", d)
	}
	if d.PlayingPartner != nil {
		t.Fatalf("expected empty playing partner to be dropped")
	}
}

func TestNormalizeGameDetailsRequiresInterviewedEmail(t *testing.T) {
	_, err := NormalizeGameDetails(GameDetails{
		Name:           "x",
		PlayingPartner: &Partner{Email: "not-an-email"},
	})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	problems := ProblemsOf(err)
	if len(problems) != 2 {
		t.Fatalf("expected two problems, got %+v", problems)
	}
	if problems[0].Field != "interviewedPartner.email" || problems[1].Field != "playingPartner.email" {
		t.Fatalf("unexpected fields %+v", problems)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NotFound("game", "g-1")
	if KindOf(err) != KindNotFound || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Fatalf("expected unknown kind for foreign error")
	}
	up := Upstream("payments", errors.New("card declined"))
	if !strings.Contains(up.Error(), "card declined") || !errors.Is(up, ErrUpstreamFailure) {
		t.Fatalf("expected upstream error to keep the cause, got %v", up)
	}
}

func TestAnswerAfterBreaksTiesBySeq(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	a := Answer{CreatedAt: at, Seq: 2}
	b := Answer{CreatedAt: at, Seq: 1}
	if !a.After(b) || b.After(a) {
		t.Fatalf("expected seq to break the tie")
	}
	c := Answer{CreatedAt: at.Add(time.Microsecond), Seq: 0}
	if !c.After(a) {
		t.Fatalf("expected later timestamp to win over seq")
	}
}

func TestAccessCode(t *testing.T) {
	code, err := NewAccessCode(0)
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	if len(code) != DefaultAccessCodeLength {
		t.Fatalf("expected %d characters, got %q", DefaultAccessCodeLength, code)
	}
	for _, r := range code {
		if !strings.ContainsRune(AccessCodeAlphabet, r) {
			t.Fatalf("unexpected character %q in %q", r, code)
		}
	}
	if NormalizeAccessCode("  ab3k9x ") != "AB3K9X" {
		t.Fatalf("expected normalized code")
	}
}
