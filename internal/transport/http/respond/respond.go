package respond

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gigmarket-api/internal/domain"
	"go.uber.org/zap"
)

// Envelope is the body of every API response.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
	Stack      string      `json:"stack,omitempty"`
}

// Responder writes envelopes. Stack traces are included only when showStack is set.
type Responder struct {
	showStack bool
	log       *zap.Logger
}

func New(showStack bool, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{showStack: showStack, log: log}
}

// JSON writes a success envelope.
func (rs *Responder) JSON(w http.ResponseWriter, status int, data interface{}, msg string) {
	write(w, status, Envelope{StatusCode: status, Data: data, Message: msg, Success: true})
}

// Error writes a failure envelope for err. Errors outside the domain.Error
// set answer 500 without leaking their text.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	env := Envelope{StatusCode: http.StatusInternalServerError, Message: "Internal Server Error"}

	e, ok := domain.AsError(err)
	if ok {
		env.StatusCode = e.Status
		env.Message = e.Message
		if e.Kind == domain.KindRateLimited && e.RetryAfterMinutes > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfterMinutes*60))
		}
		if rs.showStack {
			env.Stack = e.Stack()
		}
	} else if rs.showStack {
		env.Stack = err.Error()
	}

	if env.StatusCode >= http.StatusInternalServerError {
		rs.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", env.StatusCode),
			zap.Error(err),
		)
	}
	write(w, env.StatusCode, env)
}

// Fail writes a failure envelope with an explicit status and message.
func (rs *Responder) Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	kind := domain.KindInternal
	switch status {
	case http.StatusBadRequest:
		kind = domain.KindBadRequest
	case http.StatusUnauthorized:
		kind = domain.KindUnauthorized
	case http.StatusForbidden:
		kind = domain.KindForbidden
	case http.StatusNotFound:
		kind = domain.KindNotFound
	}
	rs.Error(w, r, domain.NewError(kind, msg).WithStatus(status))
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
