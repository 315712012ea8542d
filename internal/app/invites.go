package app

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"

	"partner-quiz-service/internal/domain"
)

// EnsureAccessCode returns the game's access code, minting and storing one
// if the game has none. Repeated calls return the same code and never touch
// the status. Codes are only issued once the game has been paid for: an
// in_creation game fails with PreconditionFailed instead of being lifted to
// ready_to_play, since that move is reserved to Publish after a successful
// charge. Publish mints the code itself, so any game holding a code is
// already at least ready_to_play.
func (s *GameService) EnsureAccessCode(ctx context.Context, actor domain.Actor, gameID string) (string, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpReadAccessCode)
	if err != nil {
		return "", err
	}
	return s.ensureAccessCode(ctx, game)
}

func (s *GameService) ensureAccessCode(ctx context.Context, game domain.Game) (string, error) {
	if game.AccessCode != "" {
		return game.AccessCode, nil
	}
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code, err := domain.NewAccessCode(s.codeLength)
		if err != nil {
			return "", err
		}
		stored, err := s.games.AssignAccessCode(ctx, game.ID, code, s.stamp())
		if errors.Is(err, ErrAccessCodeTaken) {
			continue
		}
		if err != nil {
			return "", err
		}
		return stored.AccessCode, nil
	}
	return "", errors.New("could not allocate a unique access code")
}

// InviteLink builds the join link embedded in invitations and QR codes.
func (s *GameService) InviteLink(code, gameID string) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("gameId", gameID)
	return strings.TrimRight(s.inviteBaseURL, "/") + "/join?" + q.Encode()
}

// Invitation returns the invite for a game without sending it.
func (s *GameService) Invitation(ctx context.Context, actor domain.Actor, gameID string) (domain.Invite, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpReadAccessCode)
	if err != nil {
		return domain.Invite{}, err
	}
	return s.invitation(ctx, game)
}

func (s *GameService) invitation(ctx context.Context, game domain.Game) (domain.Invite, error) {
	code, err := s.ensureAccessCode(ctx, game)
	if err != nil {
		return domain.Invite{}, err
	}
	return domain.Invite{
		GameID:     game.ID,
		GameName:   game.Name,
		AccessCode: code,
		Email:      game.InterviewedPartner.Email,
		Name:       game.InterviewedPartner.Name,
		CreatorID:  game.CreatorID,
		Link:       s.InviteLink(code, game.ID),
	}, nil
}

// SendInvite hands the invitation to the notifier. Sending again reuses the
// same access code, and a notifier failure leaves the game untouched.
func (s *GameService) SendInvite(ctx context.Context, actor domain.Actor, gameID string) (domain.Invite, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpInvite)
	if err != nil {
		return domain.Invite{}, err
	}
	invite, err := s.invitation(ctx, game)
	if err != nil {
		return domain.Invite{}, err
	}
	if err := s.notifier.SendInvite(ctx, invite); err != nil {
		log.Printf("game=%s invite to %s failed: %v", game.ID, invite.Email, err)
		return domain.Invite{}, domain.Upstream("notifier", err)
	}
	log.Printf("game=%s invite sent to %s", game.ID, invite.Email)
	return invite, nil
}

// JoinByAccessCode finds the game the interviewed partner was given a code
// for.
func (s *GameService) JoinByAccessCode(ctx context.Context, actor domain.Actor, code string) (domain.Game, error) {
	code = domain.NormalizeAccessCode(code)
	if code == "" {
		return domain.Game{}, domain.NotFound("access code", code)
	}
	game, err := s.games.FindGameByAccessCode(ctx, code)
	if err != nil {
		return domain.Game{}, err
	}
	if !game.HasRole(actor, domain.RoleInterviewedPartner) {
		return domain.Game{}, domain.Unauthorized("access code was issued to another partner")
	}
	return game, nil
}
