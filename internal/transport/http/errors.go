package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"partner-quiz-service/internal/domain"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Kind     string           `json:"kind"`
	Message  string           `json:"message"`
	Problems []domain.Problem `json:"problems,omitempty"`
}

var statusByKind = map[domain.Kind]int{
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindUnauthorized:       http.StatusForbidden,
	domain.KindPreconditionFailed: http.StatusConflict,
	domain.KindInvalidQuestion:    http.StatusUnprocessableEntity,
	domain.KindLastQuestion:       http.StatusUnprocessableEntity,
	domain.KindValidationFailed:   http.StatusUnprocessableEntity,
	domain.KindUpstreamFailure:    http.StatusBadGateway,
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: errorPayload{
			Kind:    string(domain.KindUnknown),
			Message: "internal error",
		}})
		return
	}
	c.JSON(status, errorBody{Error: errorPayload{
		Kind:     string(kind),
		Message:  err.Error(),
		Problems: domain.ProblemsOf(err),
	}})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: errorPayload{
		Kind:    "BAD_REQUEST",
		Message: err.Error(),
	}})
}
