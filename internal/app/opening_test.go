package app

import (
	"errors"
	"testing"

	"partner-quiz-service/internal/domain"
)

func TestOpeningGuardFollowsLifecycle(t *testing.T) {
	next, err := answering.Check(domain.StatusReadyToPlay)
	if err != nil || next != domain.StatusPlaying {
		t.Fatalf("expected ready_to_play to open, got %s (%v)", next, err)
	}
	if next, err := answering.Check(domain.StatusPlaying); err != nil || next != domain.StatusPlaying {
		t.Fatalf("expected playing to stay playing, got %s (%v)", next, err)
	}
	for _, status := range []domain.Status{domain.StatusInCreation, domain.StatusAnswered, domain.StatusCompleted} {
		if _, err := answering.Check(status); !errors.Is(err, domain.ErrPreconditionFailed) {
			t.Fatalf("expected %s to refuse drafts, got %v", status, err)
		}
	}
}
