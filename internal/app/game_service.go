package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"partner-quiz-service/internal/domain"
)

// ErrAccessCodeTaken is returned by repositories when a freshly generated
// access code collides with another game's code.
var ErrAccessCodeTaken = errors.New("access code already in use")

// GameRepository persists games, their question sets and answer rows.
// Every method taking a domain.Guard must check it against the game's status
// and apply the write in one atomic unit, so a write can never commit after
// a status change that forbids it.
type GameRepository interface {
	CreateGame(ctx context.Context, game domain.Game, questions []domain.Question) error
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
	FindGameByAccessCode(ctx context.Context, code string) (domain.Game, error)
	ListGamesByCreator(ctx context.Context, creatorID string) ([]domain.GameSummary, error)
	ListGamesByInterviewedEmail(ctx context.Context, email string) ([]domain.GameSummary, error)
	UpdateGameDetails(ctx context.Context, game domain.Game, guard domain.Guard) (domain.Game, error)
	// UpdateStatus is the compare-and-swap used by lifecycle transitions.
	UpdateStatus(ctx context.Context, gameID string, guard domain.Guard, at time.Time) (domain.Game, error)
	// Publish moves in_creation -> ready_to_play, recording the paid tier and
	// the access code in the same write.
	Publish(ctx context.Context, gameID string, tier domain.Tier, accessCode string, at time.Time) (domain.Game, error)
	// AssignAccessCode sets the code only when the game has none and returns
	// the game with whichever code is now stored.
	AssignAccessCode(ctx context.Context, gameID, code string, at time.Time) (domain.Game, error)

	// AddQuestion stores q at position max+1 of its game.
	AddQuestion(ctx context.Context, q domain.Question, guard domain.Guard) (domain.Question, error)
	UpdateQuestion(ctx context.Context, q domain.Question, guard domain.Guard) (domain.Question, error)
	// RemoveQuestion fails with domain.ErrLastQuestion when q is the only one left.
	RemoveQuestion(ctx context.Context, gameID, questionID string, guard domain.Guard) error
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	ListQuestions(ctx context.Context, gameID string) ([]domain.Question, error)

	// AppendAnswers inserts new answer rows (never updating older ones). When
	// check is non-nil it receives the resolved answers of the game including
	// the new rows, and an error from it rolls the whole write back.
	AppendAnswers(ctx context.Context, gameID string, answers []domain.Answer, guard domain.Guard, at time.Time, check func(map[string]domain.Answer) error) ([]domain.Answer, domain.Game, error)
	GetAnswer(ctx context.Context, answerID string) (domain.Answer, error)
	AnswerHistory(ctx context.Context, questionID string) ([]domain.Answer, error)
	// ResolveAnswer returns the row with the greatest (created_at, seq).
	ResolveAnswer(ctx context.Context, questionID string) (domain.Answer, bool, error)
	ResolveAnswers(ctx context.Context, gameID string) (map[string]domain.Answer, error)
	// SetCorrectness marks a row that is still the resolved answer of its question.
	SetCorrectness(ctx context.Context, answerID string, correctness domain.Correctness, guard domain.Guard) (domain.Answer, error)
}

// QuestionSetSource serves frozen question sets, typically from a cache.
// It is only consulted for games that have left in_creation.
type QuestionSetSource interface {
	QuestionSet(ctx context.Context, gameID string) ([]domain.Question, error)
}

// PaymentGateway charges the creator for a tier.
type PaymentGateway interface {
	Charge(ctx context.Context, charge domain.Charge) error
}

// Notifier delivers invitations to the interviewed partner.
type Notifier interface {
	SendInvite(ctx context.Context, invite domain.Invite) error
}

// GameService contains the core game use cases.
type GameService struct {
	games        GameRepository
	questionSets QuestionSetSource
	payments     PaymentGateway
	notifier     Notifier

	now           func() time.Time
	newID         func() string
	prices        map[domain.Tier]int
	codeLength    int
	inviteBaseURL string
	codeAttempts  int
}

// Option configures a GameService.
type Option func(*GameService)

// WithClock is mostly for tests that need deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *GameService) { s.newID = newID }
}

// WithQuestionSets serves frozen question sets from src instead of the repository.
func WithQuestionSets(src QuestionSetSource) Option {
	return func(s *GameService) { s.questionSets = src }
}

// WithPrices sets the charge amount in cents per tier.
func WithPrices(basic, premium int) Option {
	return func(s *GameService) {
		s.prices = map[domain.Tier]int{domain.TierBasic: basic, domain.TierPremium: premium}
	}
}

func WithAccessCodeLength(n int) Option {
	return func(s *GameService) { s.codeLength = n }
}

func WithInviteBaseURL(base string) Option {
	return func(s *GameService) {
		if base != "" {
			s.inviteBaseURL = base
		}
	}
}

func NewGameService(games GameRepository, payments PaymentGateway, notifier Notifier, opts ...Option) *GameService {
	s := &GameService{
		games:         games,
		payments:      payments,
		notifier:      notifier,
		now:           time.Now,
		newID:         uuid.NewString,
		prices:        map[domain.Tier]int{domain.TierBasic: 299, domain.TierPremium: 499},
		codeLength:    domain.DefaultAccessCodeLength,
		inviteBaseURL: "https://mrandmrs.tech",
		codeAttempts:  5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGame is the input of CreateGame.
type NewGame struct {
	domain.GameDetails
	Questions []domain.QuestionDraft
}

// CreateGame starts composing a game owned by actor.
func (s *GameService) CreateGame(ctx context.Context, actor domain.Actor, input NewGame) (domain.Game, []domain.Question, error) {
	if actor.UserID == "" {
		return domain.Game{}, nil, domain.Unauthorized("caller identity is required")
	}
	details, err := domain.NormalizeGameDetails(input.GameDetails)
	if err != nil {
		return domain.Game{}, nil, err
	}

	now := s.stamp()
	game := details.Apply(domain.Game{
		ID:        s.newID(),
		CreatorID: actor.UserID,
		Tier:      domain.TierNone,
		Status:    domain.StatusInCreation,
		CreatedAt: now,
		UpdatedAt: now,
	})

	questions := make([]domain.Question, 0, len(input.Questions))
	for i, draft := range input.Questions {
		draft, err := domain.NormalizeQuestionDraft(draft)
		if err != nil {
			return domain.Game{}, nil, err
		}
		questions = append(questions, draft.Apply(domain.Question{
			ID:            s.newID(),
			GameID:        game.ID,
			OrderPosition: i + 1,
			CreatedAt:     now,
		}))
	}

	if err := s.games.CreateGame(ctx, game, questions); err != nil {
		return domain.Game{}, nil, err
	}
	log.Printf("game=%s created by %s with %d questions", game.ID, actor.UserID, len(questions))
	return game, questions, nil
}

// GetGame returns a game to any of its parties.
func (s *GameService) GetGame(ctx context.Context, actor domain.Actor, gameID string) (domain.Game, error) {
	return s.authorized(ctx, actor, gameID, domain.OpReadGame)
}

// UpdateGame edits the metadata of a game still in creation.
func (s *GameService) UpdateGame(ctx context.Context, actor domain.Actor, gameID string, details domain.GameDetails) (domain.Game, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpEditDetails)
	if err != nil {
		return domain.Game{}, err
	}
	details, err = domain.NormalizeGameDetails(details)
	if err != nil {
		return domain.Game{}, err
	}
	updated := details.Apply(game)
	updated.UpdatedAt = s.stamp()
	return s.games.UpdateGameDetails(ctx, updated, domain.StatusIs(domain.StatusInCreation))
}

// ListCreatedGames returns the games actor composed, newest first.
func (s *GameService) ListCreatedGames(ctx context.Context, actor domain.Actor) ([]domain.GameSummary, error) {
	if actor.UserID == "" {
		return nil, domain.Unauthorized("caller identity is required")
	}
	return s.games.ListGamesByCreator(ctx, actor.UserID)
}

// ListInvitedGames returns published games where actor is the interviewed partner.
func (s *GameService) ListInvitedGames(ctx context.Context, actor domain.Actor) ([]domain.GameSummary, error) {
	if actor.Email == "" {
		return nil, domain.Unauthorized("caller email is required")
	}
	summaries, err := s.games.ListGamesByInterviewedEmail(ctx, actor.Email)
	if err != nil {
		return nil, err
	}
	visible := summaries[:0]
	for _, g := range summaries {
		if g.Status != domain.StatusInCreation {
			visible = append(visible, g)
		}
	}
	return visible, nil
}

// Publish charges the chosen tier and, only after the gateway reports
// success, moves the game to ready_to_play with a fresh access code.
func (s *GameService) Publish(ctx context.Context, actor domain.Actor, gameID string, tier domain.Tier) (domain.Game, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if _, err := domain.Decide(game, actor, domain.ActionPublish); err != nil {
		return domain.Game{}, err
	}
	if !tier.Payable() {
		return domain.Game{}, domain.PreconditionFailed(
			"a game is published with the basic or premium tier",
			map[string]string{"Tier": string(tier)},
		)
	}
	questions, err := s.games.ListQuestions(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if len(questions) == 0 {
		return domain.Game{}, domain.PreconditionFailed("add at least one question before publishing", nil)
	}

	charge := domain.Charge{GameID: game.ID, CreatorID: game.CreatorID, Tier: tier, AmountCents: s.prices[tier]}
	if err := s.payments.Charge(ctx, charge); err != nil {
		log.Printf("game=%s payment for tier %s failed: %v", game.ID, tier, err)
		return domain.Game{}, domain.Upstream("payment gateway", err)
	}

	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code, err := domain.NewAccessCode(s.codeLength)
		if err != nil {
			return domain.Game{}, err
		}
		published, err := s.games.Publish(ctx, gameID, tier, code, s.stamp())
		if errors.Is(err, ErrAccessCodeTaken) {
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrPreconditionFailed) {
				log.Printf("game=%s payment captured but publish lost the status swap: %v", game.ID, err)
			}
			return domain.Game{}, err
		}
		logTransition(game, published)
		return published, nil
	}
	return domain.Game{}, errors.New("could not allocate a unique access code")
}

// OpenGame is the interviewed partner opening the first question. Opening a
// game that is already being played is a no-op.
func (s *GameService) OpenGame(ctx context.Context, actor domain.Actor, gameID string) (domain.Game, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpGuidedFlow)
	if err != nil {
		return domain.Game{}, err
	}
	return s.lazyStart(ctx, actor, game)
}

// RevealResults opens the reveal ceremony between answered and completed.
func (s *GameService) RevealResults(ctx context.Context, actor domain.Actor, gameID string) (domain.Game, error) {
	return s.transition(ctx, actor, gameID, domain.ActionReveal)
}

// CompleteGame finishes the review; the game is read-only afterwards.
func (s *GameService) CompleteGame(ctx context.Context, actor domain.Actor, gameID string) (domain.Game, error) {
	return s.transition(ctx, actor, gameID, domain.ActionComplete)
}

func (s *GameService) transition(ctx context.Context, actor domain.Actor, gameID string, action domain.Action) (domain.Game, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	next, err := domain.Decide(game, actor, action)
	if err != nil {
		return domain.Game{}, err
	}
	updated, err := s.games.UpdateStatus(ctx, gameID, domain.MoveStatus(game.Status, next), s.stamp())
	if err != nil {
		return domain.Game{}, err
	}
	logTransition(game, updated)
	return updated, nil
}

// lazyStart performs the open transition unless the game is already playing.
// A concurrent draft may have opened it first, which the guard tolerates.
func (s *GameService) lazyStart(ctx context.Context, actor domain.Actor, game domain.Game) (domain.Game, error) {
	if game.Status == domain.StatusPlaying {
		return game, nil
	}
	next, err := domain.Decide(game, actor, domain.ActionOpen)
	if err != nil {
		return domain.Game{}, err
	}
	guard := domain.Guard{
		Allowed: []domain.Status{game.Status, next},
		Advance: map[domain.Status]domain.Status{game.Status: next},
	}
	updated, err := s.games.UpdateStatus(ctx, game.ID, guard, s.stamp())
	if err != nil {
		return domain.Game{}, err
	}
	logTransition(game, updated)
	return updated, nil
}

func (s *GameService) loadGame(ctx context.Context, gameID string) (domain.Game, error) {
	return s.games.GetGame(ctx, gameID)
}

func (s *GameService) authorized(ctx context.Context, actor domain.Actor, gameID string, op domain.Operation) (domain.Game, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if err := domain.Authorize(game, actor, op); err != nil {
		return domain.Game{}, err
	}
	return game, nil
}

// questionsFor reads a live question set while the game is in creation and
// the frozen, cacheable set afterwards.
func (s *GameService) questionsFor(ctx context.Context, game domain.Game) ([]domain.Question, error) {
	if game.Status == domain.StatusInCreation || s.questionSets == nil {
		return s.games.ListQuestions(ctx, game.ID)
	}
	return s.questionSets.QuestionSet(ctx, game.ID)
}

// stamp truncates to the microsecond precision Postgres stores.
func (s *GameService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func logTransition(before, after domain.Game) {
	if before.Status != after.Status {
		log.Printf("game=%s status %s -> %s", after.ID, before.Status, after.Status)
	}
}
