package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/domain"
	"partner-quiz-service/internal/infra/memory"
)

const testSecret = "test-secret"

type testClient struct {
	t      *testing.T
	router *gin.Engine
}

func newTestClient(t *testing.T) testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	service := app.NewGameService(store, memory.NewPaymentGateway(), memory.NewInviteOutbox(),
		app.WithQuestionSets(memory.NewQuestionSetCache(store, time.Minute)),
	)
	return testClient{t: t, router: NewRouter(NewHandler(service), testSecret)}
}

func (tc testClient) token(userID, email string) string {
	tc.t.Helper()
	token, err := IssueToken(testSecret, userID, email, time.Hour)
	if err != nil {
		tc.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (tc testClient) do(method, path, token string, body any, out any) int {
	tc.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			tc.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			tc.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestHealthz(t *testing.T) {
	tc := newTestClient(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	tc := newTestClient(t)
	var body errorBody
	if code := tc.do(http.MethodGet, "/api/games", "", nil, &body); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if body.Error.Kind != string(domain.KindUnauthorized) {
		t.Fatalf("unexpected error body %+v", body)
	}

	forged, err := IssueToken("other-secret", "u1", "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if code := tc.do(http.MethodGet, "/api/games", forged, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", code)
	}

	expired, err := IssueToken(testSecret, "u1", "a@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if code := tc.do(http.MethodGet, "/api/games", expired, nil, &body); code != http.StatusUnauthorized || body.Error.Message != "token expired" {
		t.Fatalf("expected expired token to be refused, got %d %+v", code, body)
	}
}

func TestGameOverHTTP(t *testing.T) {
	tc := newTestClient(t)
	creator := tc.token("creator-1", "sam@example.com")
	partner := tc.token("partner-1", "mia@example.com")

	var created struct {
		Game      domain.Game       `json:"game"`
		Questions []domain.Question `json:"questions"`
	}
	code := tc.do(http.MethodPost, "/api/games", creator, map[string]any{
		"name":               "Ten years",
		"interviewedPartner": map[string]string{"name": "Mia", "email": "mia@example.com"},
		"questions": []map[string]any{
			{"text": "Favourite dish?", "type": "free_text"},
			{"text": "Coffee first?", "type": "boolean"},
			{"text": "Pick one", "type": "single_choice", "options": []string{"A", "B"}},
		},
	}, &created)
	if code != http.StatusCreated || len(created.Questions) != 3 {
		t.Fatalf("create: %d %+v", code, created)
	}
	gameID := created.Game.ID
	text, boolean, choice := created.Questions[0], created.Questions[1], created.Questions[2]

	var published domain.Game
	if code := tc.do(http.MethodPost, "/api/games/"+gameID+"/publish", creator, map[string]string{"tier": "basic"}, &published); code != http.StatusOK {
		t.Fatalf("publish: %d", code)
	}
	if published.Status != domain.StatusReadyToPlay || published.AccessCode == "" {
		t.Fatalf("unexpected published game %+v", published)
	}

	var joined domain.Game
	if code := tc.do(http.MethodPost, "/api/join", partner, map[string]string{"code": published.AccessCode}, &joined); code != http.StatusOK || joined.ID != gameID {
		t.Fatalf("join: %d %+v", code, joined)
	}

	var draft app.AnswerView
	code = tc.do(http.MethodPost, "/api/games/"+gameID+"/answers", partner, map[string]any{
		"questionId": boolean.ID,
		"value":      true,
	}, &draft)
	if code != http.StatusCreated || draft.Value != true {
		t.Fatalf("draft: %d %+v", code, draft)
	}

	if code := tc.do(http.MethodGet, "/api/games/"+gameID+"/answers", partner, nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected answer sheet to be forbidden to the partner, got %d", code)
	}

	var failure errorBody
	code = tc.do(http.MethodPost, "/api/games/"+gameID+"/submit", partner, map[string]any{
		"answers": []map[string]any{{"questionId": choice.ID, "value": "A"}},
	}, &failure)
	if code != http.StatusUnprocessableEntity || len(failure.Error.Problems) != 1 || failure.Error.Problems[0].QuestionID != text.ID {
		t.Fatalf("expected 422 naming the text question, got %d %+v", code, failure)
	}

	var answered domain.Game
	code = tc.do(http.MethodPost, "/api/games/"+gameID+"/submit", partner, map[string]any{
		"answers": []map[string]any{
			{"questionId": text.ID, "value": "lasagne"},
			{"questionId": choice.ID, "value": "A"},
		},
	}, &answered)
	if code != http.StatusOK || answered.Status != domain.StatusAnswered {
		t.Fatalf("submit: %d %+v", code, answered)
	}

	var review struct {
		Items []app.ReviewItem `json:"items"`
	}
	if code := tc.do(http.MethodGet, "/api/games/"+gameID+"/answers", creator, nil, &review); code != http.StatusOK || len(review.Items) != 3 {
		t.Fatalf("answers: %d %+v", code, review)
	}
	var history struct {
		History []app.AnswerView `json:"history"`
	}
	if code := tc.do(http.MethodGet, "/api/questions/"+boolean.ID+"/history", creator, nil, &history); code != http.StatusOK || len(history.History) != 1 {
		t.Fatalf("history: %d %+v", code, history)
	}
	for i, correct := range map[int]bool{1: true, 2: false} {
		path := "/api/answers/" + review.Items[i].Answer.ID + "/correctness"
		if code := tc.do(http.MethodPut, path, creator, map[string]bool{"correct": correct}, nil); code != http.StatusOK {
			t.Fatalf("mark %d: %d", i, code)
		}
	}
	if code := tc.do(http.MethodPut, "/api/answers/"+review.Items[0].Answer.ID+"/correctness", creator, map[string]any{}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without verdict, got %d", code)
	}

	var score struct {
		Correct         int `json:"correct"`
		Total           int `json:"total"`
		MatchPercentage int `json:"matchPercentage"`
	}
	if code := tc.do(http.MethodGet, "/api/games/"+gameID+"/score", creator, nil, &score); code != http.StatusOK {
		t.Fatalf("score: %d", code)
	}
	if score.Correct != 1 || score.Total != 2 || score.MatchPercentage != 50 {
		t.Fatalf("expected 1/2, got %+v", score)
	}

	if code := tc.do(http.MethodPost, "/api/games/"+gameID+"/complete", creator, nil, nil); code != http.StatusOK {
		t.Fatalf("complete: %d", code)
	}
	code = tc.do(http.MethodPost, "/api/games/"+gameID+"/answers", partner, map[string]any{
		"questionId": text.ID,
		"value":      "pizza",
	}, &failure)
	if code != http.StatusConflict || failure.Error.Kind != string(domain.KindPreconditionFailed) {
		t.Fatalf("expected 409 after completion, got %d %+v", code, failure)
	}
}

func TestErrorMapping(t *testing.T) {
	tc := newTestClient(t)
	creator := tc.token("creator-1", "sam@example.com")
	stranger := tc.token("someone", "someone@example.com")

	var body errorBody
	if code := tc.do(http.MethodGet, "/api/games/missing", creator, nil, &body); code != http.StatusNotFound || body.Error.Kind != string(domain.KindNotFound) {
		t.Fatalf("expected 404, got %d %+v", code, body)
	}

	var created struct {
		Game domain.Game `json:"game"`
	}
	tc.do(http.MethodPost, "/api/games", creator, map[string]any{
		"name":               "Solo",
		"interviewedPartner": map[string]string{"email": "mia@example.com"},
		"questions":          []map[string]any{{"text": "Why?", "type": "free_text"}},
	}, &created)

	if code := tc.do(http.MethodGet, "/api/games/"+created.Game.ID, stranger, nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", code)
	}
	qs := "/api/games/" + created.Game.ID + "/questions"
	if code := tc.do(http.MethodPost, qs, creator, map[string]any{"text": "Pick", "type": "single_choice", "options": []string{"A"}}, &body); code != http.StatusUnprocessableEntity || body.Error.Kind != string(domain.KindInvalidQuestion) {
		t.Fatalf("expected 422 invalid question, got %d %+v", code, body)
	}
	if code := tc.do(http.MethodGet, "/api/games/"+created.Game.ID+"/play/first", creator, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad index, got %d", code)
	}
	if code := tc.do(http.MethodPost, "/api/games", creator, map[string]any{"name": "no partner"}, &body); code != http.StatusUnprocessableEntity || len(body.Error.Problems) == 0 {
		t.Fatalf("expected 422 with problems, got %d %+v", code, body)
	}
}

func TestInviteQR(t *testing.T) {
	tc := newTestClient(t)
	creator := tc.token("creator-1", "sam@example.com")

	var created struct {
		Game domain.Game `json:"game"`
	}
	tc.do(http.MethodPost, "/api/games", creator, map[string]any{
		"name":               "QR",
		"interviewedPartner": map[string]string{"email": "mia@example.com"},
		"questions":          []map[string]any{{"text": "Why?", "type": "free_text"}},
	}, &created)
	tc.do(http.MethodPost, "/api/games/"+created.Game.ID+"/publish", creator, map[string]string{"tier": "premium"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/games/"+created.Game.ID+"/invite/qr", nil)
	req.Header.Set("Authorization", "Bearer "+creator)
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("body is not a png")
	}

	var code struct {
		AccessCode string `json:"accessCode"`
	}
	if status := tc.do(http.MethodGet, "/api/games/"+created.Game.ID+"/access-code", creator, nil, &code); status != http.StatusOK || code.AccessCode == "" {
		t.Fatalf("access code: %d %+v", status, code)
	}
}
