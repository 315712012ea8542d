package postgres

import (
	"time"

	"github.com/uptrace/bun"
	"partner-quiz-service/internal/domain"
)

type gameRow struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID               string    `bun:"id,pk"`
	CreatorID        string    `bun:"creator_id"`
	InterviewedEmail string    `bun:"interviewed_email"`
	InterviewedName  string    `bun:"interviewed_name"`
	PlayingEmail     string    `bun:"playing_email,nullzero"`
	PlayingName      string    `bun:"playing_name,nullzero"`
	Name             string    `bun:"name"`
	Occasion         string    `bun:"occasion"`
	PaymentTier      string    `bun:"payment_tier"`
	Status           string    `bun:"status"`
	AccessCode       string    `bun:"access_code,nullzero"`
	CreatedAt        time.Time `bun:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at"`
}

func fromGame(g domain.Game) gameRow {
	row := gameRow{
		ID:               g.ID,
		CreatorID:        g.CreatorID,
		InterviewedEmail: g.InterviewedPartner.Email,
		InterviewedName:  g.InterviewedPartner.Name,
		Name:             g.Name,
		Occasion:         g.Occasion,
		PaymentTier:      string(g.Tier),
		Status:           string(g.Status),
		AccessCode:       g.AccessCode,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
	if g.PlayingPartner != nil {
		row.PlayingEmail = g.PlayingPartner.Email
		row.PlayingName = g.PlayingPartner.Name
	}
	return row
}

func (r gameRow) toDomain() domain.Game {
	g := domain.Game{
		ID:                 r.ID,
		CreatorID:          r.CreatorID,
		InterviewedPartner: domain.Partner{Name: r.InterviewedName, Email: r.InterviewedEmail},
		Name:               r.Name,
		Occasion:           r.Occasion,
		Tier:               domain.Tier(r.PaymentTier),
		Status:             domain.Status(r.Status),
		AccessCode:         r.AccessCode,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.PlayingEmail != "" {
		g.PlayingPartner = &domain.Partner{Name: r.PlayingName, Email: r.PlayingEmail}
	}
	return g
}

type summaryRow struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID            string    `bun:"id,pk"`
	Name          string    `bun:"name"`
	Occasion      string    `bun:"occasion"`
	Status        string    `bun:"status"`
	PaymentTier   string    `bun:"payment_tier"`
	CreatedAt     time.Time `bun:"created_at"`
	QuestionCount int       `bun:"question_count,scanonly"`
}

func (r summaryRow) toDomain() domain.GameSummary {
	return domain.GameSummary{
		ID:            r.ID,
		Name:          r.Name,
		Occasion:      r.Occasion,
		Status:        domain.Status(r.Status),
		Tier:          domain.Tier(r.PaymentTier),
		QuestionCount: r.QuestionCount,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string    `bun:"id,pk"`
	GameID        string    `bun:"game_id"`
	Text          string    `bun:"text"`
	Type          string    `bun:"type"`
	OrderPosition int       `bun:"order_position"`
	Options       []string  `bun:"options,array"`
	AllowMultiple bool      `bun:"allow_multiple"`
	CreatedAt     time.Time `bun:"created_at"`
}

func fromQuestion(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		GameID:        q.GameID,
		Text:          q.Text,
		Type:          string(q.Type),
		OrderPosition: q.OrderPosition,
		Options:       append([]string{}, q.Options...),
		AllowMultiple: q.AllowMultiple,
		CreatedAt:     q.CreatedAt,
	}
}

func (r questionRow) toDomain() domain.Question {
	q := domain.Question{
		ID:            r.ID,
		GameID:        r.GameID,
		Text:          r.Text,
		Type:          domain.QuestionType(r.Type),
		OrderPosition: r.OrderPosition,
		AllowMultiple: r.AllowMultiple,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if len(r.Options) > 0 {
		q.Options = r.Options
	}
	return q
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID          string    `bun:"id,pk"`
	QuestionID  string    `bun:"question_id"`
	Value       string    `bun:"value"`
	ValueKind   string    `bun:"value_kind"`
	MediaURL    string    `bun:"media_url,nullzero"`
	MediaKind   string    `bun:"media_kind,nullzero"`
	Correctness string    `bun:"correctness"`
	CreatedAt   time.Time `bun:"created_at"`
	// Seq is filled by the BIGSERIAL default on insert.
	Seq int64 `bun:"seq,nullzero"`
}

func fromAnswer(a domain.Answer) answerRow {
	row := answerRow{
		ID:          a.ID,
		QuestionID:  a.QuestionID,
		Correctness: string(a.Correctness),
		CreatedAt:   a.CreatedAt,
	}
	if a.Value != nil {
		row.Value = a.Value.Encode()
		row.ValueKind = string(a.Value.Kind())
	} else {
		row.ValueKind = string(domain.ValueText)
	}
	if a.Media != nil {
		row.MediaURL = a.Media.URL
		row.MediaKind = string(a.Media.Kind)
	}
	return row
}

func (r answerRow) toDomain() (domain.Answer, error) {
	value, err := domain.DecodeAnswerValue(domain.ValueKind(r.ValueKind), r.Value)
	if err != nil {
		return domain.Answer{}, err
	}
	a := domain.Answer{
		ID:          r.ID,
		QuestionID:  r.QuestionID,
		Value:       value,
		Correctness: domain.Correctness(r.Correctness),
		CreatedAt:   r.CreatedAt.UTC(),
		Seq:         r.Seq,
	}
	if r.MediaURL != "" {
		a.Media = &domain.Media{URL: r.MediaURL, Kind: domain.MediaKind(r.MediaKind)}
	}
	return a, nil
}
