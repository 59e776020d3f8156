package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quinn/internal/errs"
	"quinn/internal/features"
	"quinn/internal/models"
)

type fakeService struct {
	startFn  func(ctx context.Context, applicationID string) (*features.InterviewSession, error)
	submitFn func(ctx context.Context, questionID, answerText string, mediaRef *string) (*features.SubmissionResult, error)
	getFn    func(ctx context.Context, interviewID string) (*features.InterviewSession, error)
}

func (f *fakeService) StartInterview(ctx context.Context, applicationID string) (*features.InterviewSession, error) {
	return f.startFn(ctx, applicationID)
}

func (f *fakeService) SubmitAndGenerateQuestion(ctx context.Context, questionID string, answerText string, mediaRef *string) (*features.SubmissionResult, error) {
	return f.submitFn(ctx, questionID, answerText, mediaRef)
}

func (f *fakeService) GetInterview(ctx context.Context, interviewID string) (*features.InterviewSession, error) {
	return f.getFn(ctx, interviewID)
}

func post(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStartInterviewEndpoint(t *testing.T) {
	service := &fakeService{
		startFn: func(ctx context.Context, applicationID string) (*features.InterviewSession, error) {
			require.Equal(t, "app-1", applicationID)
			return &features.InterviewSession{
				Interview: &models.Interview{ID: "itv-1", Status: models.InterviewStatusInProgress},
				Questions: []models.InterviewQuestion{{ID: "q-1", SequenceNumber: 1}},
			}, nil
		},
	}
	router := New(service).Router(nil)

	rec := post(t, router, "/interview/start", map[string]string{"applicationId": "app-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var session features.InterviewSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "itv-1", session.Interview.ID)
	require.Len(t, session.Questions, 1)
}

func TestStartInterviewValidation(t *testing.T) {
	service := &fakeService{
		startFn: func(ctx context.Context, applicationID string) (*features.InterviewSession, error) {
			t.Fatal("service must not be called on invalid input")
			return nil, nil
		},
	}
	router := New(service).Router(nil)

	rec := post(t, router, "/interview/start", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/interview/start", bytes.NewReader([]byte("{broken")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitQuestionEndpoint(t *testing.T) {
	service := &fakeService{
		submitFn: func(ctx context.Context, questionID, answerText string, mediaRef *string) (*features.SubmissionResult, error) {
			assert.Equal(t, "q-1", questionID)
			assert.Equal(t, "My answer.", answerText)
			require.NotNil(t, mediaRef)
			assert.Equal(t, "s3://bucket/a.webm", *mediaRef)
			return &features.SubmissionResult{InterviewID: "itv-1", Status: models.InterviewStatusInProgress}, nil
		},
	}
	router := New(service).Router(nil)

	rec := post(t, router, "/interview/submitQuestion", map[string]string{
		"questionId": "q-1",
		"answerText": "My answer.",
		"mediaRef":   "s3://bucket/a.webm",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result features.SubmissionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "itv-1", result.InterviewID)
}

func TestSubmitQuestionConflictMapsTo409(t *testing.T) {
	service := &fakeService{
		submitFn: func(ctx context.Context, questionID, answerText string, mediaRef *string) (*features.SubmissionResult, error) {
			return nil, &errs.ErrConflict{Message: "interview itv-1 is COMPLETED, no further submissions accepted"}
		},
	}
	router := New(service).Router(nil)

	rec := post(t, router, "/interview/submitQuestion", map[string]string{
		"questionId": "q-1",
		"answerText": "Late.",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "COMPLETED")
}

func TestGetInterviewEndpoint(t *testing.T) {
	service := &fakeService{
		getFn: func(ctx context.Context, interviewID string) (*features.InterviewSession, error) {
			if interviewID != "itv-1" {
				return nil, &errs.ErrNotFound{Resource: "interview", ID: interviewID}
			}
			return &features.InterviewSession{Interview: &models.Interview{ID: "itv-1"}}, nil
		},
	}
	router := New(service).Router(nil)

	req := httptest.NewRequest(http.MethodGet, "/interview/itv-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/interview/nope", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := New(&fakeService{}).Router(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	auth := &Auth{secret: []byte(secret)}
	service := &fakeService{
		getFn: func(ctx context.Context, interviewID string) (*features.InterviewSession, error) {
			return &features.InterviewSession{Interview: &models.Interview{ID: interviewID}}, nil
		},
	}
	router := New(service).Router(auth)

	req := httptest.NewRequest(http.MethodGet, "/interview/itv-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token")

	req = httptest.NewRequest(http.MethodGet, "/interview/itv-1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "garbage token")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "candidate-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/interview/itv-1", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "valid token")

	// Health stays open without a token.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
