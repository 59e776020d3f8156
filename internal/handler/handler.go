package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quinn/internal/errs"
	"quinn/internal/features"
	logging "quinn/pkg/logger/pkg"
)

// Handler exposes the interview operations over HTTP.
type Handler struct {
	service  features.IQuinn
	validate *validator.Validate
}

func New(service features.IQuinn) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the full route tree, including health and metrics endpoints.
func (h *Handler) Router(auth *Auth) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/interview", func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Middleware)
		}
		r.Post("/start", h.StartInterview)
		r.Post("/submitQuestion", h.SubmitAndGenerateQuestion)
		r.Get("/{interviewId}", h.GetInterview)
	})

	return r
}

type startInterviewRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
}

func (h *Handler) StartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.StartInterview(r.Context(), req.ApplicationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

type submitQuestionRequest struct {
	QuestionID string  `json:"questionId" validate:"required"`
	AnswerText string  `json:"answerText" validate:"required"`
	MediaRef   *string `json:"mediaRef,omitempty"`
}

func (h *Handler) SubmitAndGenerateQuestion(w http.ResponseWriter, r *http.Request) {
	var req submitQuestionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.SubmitAndGenerateQuestion(r.Context(), req.QuestionID, req.AnswerText, req.MediaRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetInterview(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewId")
	if interviewID == "" {
		h.writeError(w, r, &errs.ErrValidation{Field: "interviewId", Message: "must not be empty"})
		return
	}

	session, err := h.service.GetInterview(r.Context(), interviewID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// decode unmarshals and validates the request body. On failure it writes the
// error response itself and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, &errs.ErrValidation{Field: "body", Message: "malformed JSON"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if ok := errors.As(err, &invalid); ok && len(invalid) > 0 {
			h.writeError(w, r, &errs.ErrValidation{Field: invalid[0].Field(), Message: "failed " + invalid[0].Tag() + " validation"})
			return false
		}
		h.writeError(w, r, &errs.ErrValidation{Field: "body", Message: err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Logger(r.Context()).Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		logging.Logger(r.Context()).Info("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.String("reason", err.Error()))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Logger(nil).Error("Failed to encode response", zap.Error(err))
	}
}
