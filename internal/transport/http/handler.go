package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/domain"
)

// Handler exposes GameService over JSON.
type Handler struct {
	service *app.GameService
}

func NewHandler(service *app.GameService) *Handler {
	return &Handler{service: service}
}

// NewRouter wires every route behind the bearer-token middleware, except
// the health check.
func NewRouter(h *Handler, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.Use(AuthMiddleware(jwtSecret))
	{
		games := api.Group("/games")
		{
			games.POST("", h.CreateGame)
			games.GET("", h.ListCreatedGames)
			games.GET("/invited", h.ListInvitedGames)
			games.GET("/:id", h.GetGame)
			games.PATCH("/:id", h.UpdateGame)
			games.POST("/:id/publish", h.Publish)

			games.GET("/:id/questions", h.ListQuestions)
			games.POST("/:id/questions", h.AddQuestion)
			games.PUT("/:id/questions/:questionId", h.UpdateQuestion)
			games.DELETE("/:id/questions/:questionId", h.RemoveQuestion)

			games.POST("/:id/open", h.OpenGame)
			games.GET("/:id/play/:index", h.QuestionAt)
			games.GET("/:id/answers", h.Answers)
			games.POST("/:id/answers", h.SaveDraft)
			games.POST("/:id/submit", h.SubmitFinal)

			games.POST("/:id/reveal", h.RevealResults)
			games.POST("/:id/complete", h.CompleteGame)
			games.GET("/:id/score", h.Score)
			games.GET("/:id/results", h.Results)

			games.POST("/:id/invite", h.SendInvite)
			games.GET("/:id/access-code", h.AccessCode)
			games.GET("/:id/invite/qr", h.InviteQR)
		}
		api.GET("/questions/:questionId/answer", h.ResolveAnswer)
		api.GET("/questions/:questionId/history", h.AnswerHistory)
		api.PUT("/answers/:answerId/correctness", h.MarkCorrectness)
		api.POST("/join", h.Join)
	}
	return router
}

type gameRequest struct {
	Name               string                 `json:"name"`
	Occasion           string                 `json:"occasion"`
	InterviewedPartner domain.Partner         `json:"interviewedPartner"`
	PlayingPartner     *domain.Partner        `json:"playingPartner"`
	Questions          []domain.QuestionDraft `json:"questions"`
}

func (r gameRequest) details() domain.GameDetails {
	return domain.GameDetails{
		Name:               r.Name,
		Occasion:           r.Occasion,
		InterviewedPartner: r.InterviewedPartner,
		PlayingPartner:     r.PlayingPartner,
	}
}

func (h *Handler) CreateGame(c *gin.Context) {
	var req gameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	game, questions, err := h.service.CreateGame(c.Request.Context(), actorFrom(c), app.NewGame{
		GameDetails: req.details(),
		Questions:   req.Questions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": game, "questions": questions})
}

func (h *Handler) ListCreatedGames(c *gin.Context) {
	games, err := h.service.ListCreatedGames(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": nonNil(games)})
}

func (h *Handler) ListInvitedGames(c *gin.Context) {
	games, err := h.service.ListInvitedGames(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": nonNil(games)})
}

func (h *Handler) GetGame(c *gin.Context) {
	game, err := h.service.GetGame(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *Handler) UpdateGame(c *gin.Context) {
	var req gameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	game, err := h.service.UpdateGame(c.Request.Context(), actorFrom(c), c.Param("id"), req.details())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type publishRequest struct {
	Tier domain.Tier `json:"tier"`
}

func (h *Handler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.respondGame(c, func() (domain.Game, error) {
		return h.service.Publish(c.Request.Context(), actorFrom(c), c.Param("id"), req.Tier)
	})
}

func (h *Handler) ListQuestions(c *gin.Context) {
	questions, err := h.service.ListQuestions(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": nonNil(questions)})
}

func (h *Handler) AddQuestion(c *gin.Context) {
	var draft domain.QuestionDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.service.AddQuestion(c.Request.Context(), actorFrom(c), c.Param("id"), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *Handler) UpdateQuestion(c *gin.Context) {
	var draft domain.QuestionDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.service.UpdateQuestion(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("questionId"), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) RemoveQuestion(c *gin.Context) {
	if err := h.service.RemoveQuestion(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("questionId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) OpenGame(c *gin.Context) {
	h.respondGame(c, func() (domain.Game, error) {
		return h.service.OpenGame(c.Request.Context(), actorFrom(c), c.Param("id"))
	})
}

func (h *Handler) QuestionAt(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, errors.New("index must be a number"))
		return
	}
	step, err := h.service.QuestionAt(c.Request.Context(), actorFrom(c), c.Param("id"), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// answerRequest is one answer on the wire. Value may be a string, a boolean
// or a list of strings.
type answerRequest struct {
	QuestionID string          `json:"questionId"`
	Value      json.RawMessage `json:"value"`
	Media      *domain.Media   `json:"media"`
}

func (r answerRequest) input() (app.AnswerInput, error) {
	value, err := domain.AnswerValueFromJSON(r.Value)
	if err != nil {
		return app.AnswerInput{}, err
	}
	return app.AnswerInput{QuestionID: r.QuestionID, Value: value, Media: r.Media}, nil
}

func (h *Handler) SaveDraft(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.service.SaveGameDraft(c.Request.Context(), actorFrom(c), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.ViewOf(a))
}

type submitRequest struct {
	Answers []answerRequest `json:"answers"`
}

func (h *Handler) SubmitFinal(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	inputs := make([]app.AnswerInput, 0, len(req.Answers))
	for _, r := range req.Answers {
		in, err := r.input()
		if err != nil {
			badRequest(c, err)
			return
		}
		inputs = append(inputs, in)
	}
	h.respondGame(c, func() (domain.Game, error) {
		return h.service.SubmitFinal(c.Request.Context(), actorFrom(c), c.Param("id"), inputs)
	})
}

func (h *Handler) Answers(c *gin.Context) {
	items, err := h.service.Answers(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ResolveAnswer(c *gin.Context) {
	a, ok, err := h.service.ResolveAnswer(c.Request.Context(), actorFrom(c), c.Param("questionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"answer": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": app.ViewOf(a)})
}

func (h *Handler) AnswerHistory(c *gin.Context) {
	rows, err := h.service.AnswerHistory(c.Request.Context(), actorFrom(c), c.Param("questionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

type correctnessRequest struct {
	Correct *bool `json:"correct"`
}

func (h *Handler) MarkCorrectness(c *gin.Context) {
	var req correctnessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Correct == nil {
		badRequest(c, errors.New("correct is required"))
		return
	}
	a, err := h.service.MarkCorrectness(c.Request.Context(), actorFrom(c), c.Param("answerId"), *req.Correct)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.ViewOf(a))
}

func (h *Handler) RevealResults(c *gin.Context) {
	h.respondGame(c, func() (domain.Game, error) {
		return h.service.RevealResults(c.Request.Context(), actorFrom(c), c.Param("id"))
	})
}

func (h *Handler) CompleteGame(c *gin.Context) {
	h.respondGame(c, func() (domain.Game, error) {
		return h.service.CompleteGame(c.Request.Context(), actorFrom(c), c.Param("id"))
	})
}

func (h *Handler) Score(c *gin.Context) {
	card, err := h.service.Score(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correct":         card.Correct,
		"total":           card.Total,
		"matchPercentage": card.MatchPercentage(),
	})
}

func (h *Handler) Results(c *gin.Context) {
	res, err := h.service.Results(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SendInvite(c *gin.Context) {
	invite, err := h.service.SendInvite(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invite)
}

func (h *Handler) AccessCode(c *gin.Context) {
	code, err := h.service.EnsureAccessCode(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessCode": code})
}

// InviteQR renders the join link as a PNG QR code.
func (h *Handler) InviteQR(c *gin.Context) {
	invite, err := h.service.Invitation(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	const qrSize = 320
	png, err := qrcode.Encode(invite.Link, qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type joinRequest struct {
	Code string `json:"code"`
}

func (h *Handler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.respondGame(c, func() (domain.Game, error) {
		return h.service.JoinByAccessCode(c.Request.Context(), actorFrom(c), req.Code)
	})
}

func (h *Handler) respondGame(c *gin.Context, fn func() (domain.Game, error)) {
	game, err := fn()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
