package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"quinn/internal/errs"
	"quinn/internal/metrics"
	"quinn/internal/models"
	repo "quinn/internal/repo"
	"quinn/internal/resume"
	sv "quinn/internal/service"
	gen "quinn/internal/utils/generator"
	"quinn/internal/utils/redis"
	"quinn/internal/utils/tx"
	rabbit "quinn/pkg/rabbit/pkg"
)

// placeholderText occupies a reserved row until the background generation
// fills it. Rows are filtered by state, never by this text.
const placeholderText = "Preparing your next question..."

type IQuinn interface {
	StartInterview(ctx context.Context, applicationID string) (*InterviewSession, error)
	SubmitAndGenerateQuestion(ctx context.Context, questionID string, answerText string, mediaRef *string) (*SubmissionResult, error)
	GetInterview(ctx context.Context, interviewID string) (*InterviewSession, error)
}

// InterviewSession is an interview together with its visible questions.
type InterviewSession struct {
	Interview *models.Interview          `json:"interview"`
	Questions []models.InterviewQuestion `json:"questions"`
}

// SubmissionResult is returned to the caller immediately after the
// transaction commits; it never waits on AI latency.
type SubmissionResult struct {
	InterviewID string                     `json:"interviewId"`
	Status      models.InterviewStatus     `json:"status"`
	Questions   []models.InterviewQuestion `json:"questions"`
}

// Quinn orchestrates interview sessions: transactional seeding, answer
// submission with reserve-then-fulfill sequence allocation, and completion
// on quota or time limit.
type Quinn struct {
	forgeClient sv.Generator
	repo        repo.Repository
	rabbit      rabbit.Rabbit
	cache       redis.Redis
	extractor   resume.Extractor
	pool        *GenerationWorkerPool
	policy      Policy
	logger      *zap.Logger
	now         func() time.Time
}

func New(repository *repo.Repository, forge sv.Generator, cache redis.Redis, extractor resume.Extractor, rb rabbit.Rabbit, policy Policy, logger *zap.Logger) *Quinn {
	return &Quinn{
		forgeClient: forge,
		repo:        *repository,
		rabbit:      rb,
		cache:       cache,
		extractor:   extractor,
		policy:      policy,
		logger:      logger,
		now:         time.Now,
	}
}

// AttachPool wires the generation worker pool. Must be called before the
// first submission is accepted.
func (s *Quinn) AttachPool(pool *GenerationWorkerPool) {
	s.pool = pool
}

func resumeKey(applicationID string) string {
	return fmt.Sprintf("resume:%s", applicationID)
}

// StartInterview seeds an interview for a job application. Idempotent: an
// already-running interview for the application is returned unchanged. The
// interview row, the resume extraction, the cache write and the initial AI
// batch all live inside one transaction, so an upstream failure rolls the
// whole creation back.
func (s *Quinn) StartInterview(ctx context.Context, applicationID string) (*InterviewSession, error) {
	existing, err := s.repo.Interview.FindActiveByApplication(ctx, applicationID)
	if err != nil {
		return nil, &errs.ErrInfra{Op: "interview lookup", Err: err}
	}
	if existing != nil {
		s.logger.Info("Interview already in progress", zap.String("interviewId", existing.ID), zap.String("applicationId", applicationID))
		return s.sessionOf(ctx, existing)
	}

	application, err := s.repo.Application.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	var (
		interview *models.Interview
		questions []models.InterviewQuestion
	)
	txErr := tx.WithTransaction(ctx, s.repo.DB, func(ctx context.Context, txdb *gorm.DB) error {
		startedAt := s.now()
		interview = &models.Interview{
			ID:                  gen.GenerateUUID(),
			ApplicationID:       application.ID,
			JobID:               application.JobID,
			CandidateID:         application.CandidateID,
			Status:              models.InterviewStatusInProgress,
			TotalQuestionsToAsk: s.policy.TotalQuestionsToAsk,
			StartedAt:           &startedAt,
		}
		if err := s.repo.Interview.Create(ctx, txdb, interview); err != nil {
			return err
		}

		resumeText, err := s.extractor.Extract(ctx, application.ResumeURL)
		if err != nil {
			return err
		}

		if err := s.cache.Set(ctx, resumeKey(application.ID), resumeText, s.policy.MaxDuration); err != nil {
			return &errs.ErrInfra{Op: "resume cache write", Err: err}
		}

		configs := s.policy.initialConfigs()
		generated, err := s.forgeClient.GenerateInterviewQuestions(ctx, &sv.GenerateRequest{
			ResumeText:              resumeText,
			JobDescription:          describeJob(application.Job),
			SkillDescriptionMap:     application.Job.SkillDescriptionMap,
			PreviousQuestions:       []models.QaPair{},
			ExpectedQuestionsConfig: configs,
		})
		if err != nil {
			return err
		}

		rows := make([]*models.InterviewQuestion, len(generated))
		for i, q := range generated {
			estimated := q.EstimatedTimeMinutes
			if estimated <= 0 {
				estimated = configs[i].ExpectedTimeToAnswer
			}
			rows[i] = &models.InterviewQuestion{
				ID:                   gen.GenerateUUID(),
				InterviewID:          interview.ID,
				QuestionText:         q.Question,
				SequenceNumber:       int32(i + 1),
				State:                models.QuestionStateGenerated,
				IsAiGenerated:        true,
				EstimatedTimeMinutes: estimated,
				Category:             configs[i].Category,
				TotalMarks:           configs[i].TotalMarks,
			}
		}
		if err := s.repo.Question.CreateBatch(ctx, txdb, rows); err != nil {
			return err
		}
		questions = make([]models.InterviewQuestion, len(rows))
		for i, row := range rows {
			questions[i] = *row
		}
		return nil
	})
	if txErr != nil {
		// A concurrent start won the partial unique index; hand back the
		// winner's interview instead of failing.
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			winner, err := s.repo.Interview.FindActiveByApplication(ctx, applicationID)
			if err == nil && winner != nil {
				s.logger.Info("Concurrent start resolved to existing interview",
					zap.String("interviewId", winner.ID), zap.String("applicationId", applicationID))
				return s.sessionOf(ctx, winner)
			}
		}
		s.logger.Error("Failed to start interview", zap.String("applicationId", applicationID), zap.Error(txErr))
		return nil, txErr
	}

	s.logger.Info("Started interview",
		zap.String("interviewId", interview.ID),
		zap.String("applicationId", applicationID),
		zap.Int("seededQuestions", len(questions)))
	return &InterviewSession{Interview: interview, Questions: questions}, nil
}

// SubmitAndGenerateQuestion records an answer, decides whether the session
// ends (quota or time limit) and otherwise reserves the next sequence slot
// inside the same transaction. The AI follow-up runs in the worker pool
// after commit; the caller gets the current visible questions immediately.
func (s *Quinn) SubmitAndGenerateQuestion(ctx context.Context, questionID string, answerText string, mediaRef *string) (*SubmissionResult, error) {
	var (
		result    *SubmissionResult
		interview *models.Interview
		reserved  *models.InterviewQuestion
		reason    models.CompletionReason
	)

	txErr := tx.WithTransaction(ctx, s.repo.DB, func(ctx context.Context, txdb *gorm.DB) error {
		question, err := s.repo.Question.Get(ctx, txdb, questionID)
		if err != nil {
			return err
		}

		// The row lock serializes concurrent submissions on this interview;
		// the count below is stable until commit.
		interview, err = s.repo.Interview.GetForUpdate(ctx, txdb, question.InterviewID)
		if err != nil {
			return err
		}
		if interview.Status != models.InterviewStatusInProgress {
			return &errs.ErrConflict{Message: fmt.Sprintf("interview %s is %s, no further submissions accepted", interview.ID, interview.Status)}
		}
		if question.State == models.QuestionStateReserved {
			return &errs.ErrConflict{Message: fmt.Sprintf("question %s is still being generated", question.ID)}
		}

		question.Answer = &answerText
		question.MediaRef = mediaRef
		question.State = models.QuestionStateAnswered
		if err := s.repo.Question.Update(ctx, txdb, question); err != nil {
			return err
		}

		count, err := s.repo.Question.CountByInterview(ctx, txdb, interview.ID)
		if err != nil {
			return err
		}

		now := s.now()
		switch {
		case count >= int64(interview.TotalQuestionsToAsk):
			reason = models.CompletionReasonQuota
			if err := s.repo.Interview.Complete(ctx, txdb, interview, now); err != nil {
				return err
			}
		case interview.StartedAt != nil && now.Sub(*interview.StartedAt) > s.policy.MaxDuration:
			reason = models.CompletionReasonTimeLimit
			if err := s.repo.Interview.Complete(ctx, txdb, interview, now); err != nil {
				return err
			}
		default:
			cfg := s.policy.configFor(int(count))
			reserved = &models.InterviewQuestion{
				ID:                   gen.GenerateUUID(),
				InterviewID:          interview.ID,
				QuestionText:         placeholderText,
				SequenceNumber:       int32(count) + 1,
				IsAiGenerated:        false,
				EstimatedTimeMinutes: cfg.ExpectedTimeToAnswer,
				Category:             cfg.Category,
				TotalMarks:           cfg.TotalMarks,
			}
			if err := s.repo.Question.CreateReservation(ctx, txdb, reserved); err != nil {
				return err
			}
		}

		visible, err := s.repo.Question.ListVisible(ctx, txdb, interview.ID)
		if err != nil {
			return err
		}
		result = &SubmissionResult{
			InterviewID: interview.ID,
			Status:      interview.Status,
			Questions:   visible,
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if reason != "" {
		s.publishCompleted(ctx, interview, reason)
	}
	if reserved != nil {
		s.scheduleGeneration(interview, reserved)
	}
	return result, nil
}

// GetInterview returns an interview and its visible questions.
func (s *Quinn) GetInterview(ctx context.Context, interviewID string) (*InterviewSession, error) {
	interview, err := s.repo.Interview.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	return s.sessionOf(ctx, interview)
}

func (s *Quinn) sessionOf(ctx context.Context, interview *models.Interview) (*InterviewSession, error) {
	questions, err := s.repo.Question.ListVisible(ctx, nil, interview.ID)
	if err != nil {
		return nil, err
	}
	return &InterviewSession{Interview: interview, Questions: questions}, nil
}

func (s *Quinn) scheduleGeneration(interview *models.Interview, reserved *models.InterviewQuestion) {
	job := GenerationJob{
		InterviewID:    interview.ID,
		ApplicationID:  interview.ApplicationID,
		QuestionID:     reserved.ID,
		SequenceNumber: reserved.SequenceNumber,
		Config: sv.QuestionConfig{
			Category:             reserved.Category,
			ExpectedTimeToAnswer: reserved.EstimatedTimeMinutes,
			TotalMarks:           reserved.TotalMarks,
		},
	}
	if s.pool == nil || !s.pool.EnqueueJob(s.logger, job) {
		// The queue rejected the job; fill the reservation with a fallback
		// so the candidate is not left staring at a placeholder.
		go func() {
			if err := s.fillFallback(context.Background(), job); err != nil {
				s.logger.Error("Failed to fill fallback question after enqueue rejection",
					zap.String("interviewId", job.InterviewID),
					zap.String("questionId", job.QuestionID),
					zap.Error(err))
			}
		}()
	}
}

// fulfillReservation runs in the worker pool. It reads the cached resume,
// builds prior Q/A context and fills the reserved row in place. A cache miss
// force-completes the interview: the cache is the sole resume source on this
// path and re-parsing is not allowed here.
func (s *Quinn) fulfillReservation(ctx context.Context, job GenerationJob) error {
	cached, err := s.cache.Get(ctx, resumeKey(job.ApplicationID))
	if err != nil {
		return &errs.ErrInfra{Op: "resume cache read", Err: err}
	}
	if cached == nil {
		s.logger.Warn("Resume cache entry missing, force-completing interview",
			zap.String("interviewId", job.InterviewID),
			zap.String("applicationId", job.ApplicationID))
		return s.ForceComplete(ctx, job.InterviewID, models.CompletionReasonCacheExpired)
	}

	pairs, err := s.repo.Question.QaPairs(ctx, job.InterviewID)
	if err != nil {
		return &errs.ErrInfra{Op: "qa pair lookup", Err: err}
	}

	application, err := s.repo.Application.FindByID(ctx, job.ApplicationID)
	if err != nil {
		return err
	}

	generated, err := s.forgeClient.GenerateInterviewQuestions(ctx, &sv.GenerateRequest{
		ResumeText:              string(cached),
		JobDescription:          describeJob(application.Job),
		SkillDescriptionMap:     application.Job.SkillDescriptionMap,
		PreviousQuestions:       pairs,
		ExpectedQuestionsConfig: []sv.QuestionConfig{job.Config},
	})
	if err != nil {
		return err
	}

	return s.fill(ctx, job, generated[0].Question, generated[0].EstimatedTimeMinutes, true)
}

// fillFallback runs after the last failed attempt. The placeholder gets a
// category-specific generic question instead of staying empty forever.
func (s *Quinn) fillFallback(ctx context.Context, job GenerationJob) error {
	return s.fill(ctx, job, fallbackQuestion(job.Config.Category), job.Config.ExpectedTimeToAnswer, false)
}

func (s *Quinn) fill(ctx context.Context, job GenerationJob, text string, estimatedMinutes int32, aiGenerated bool) error {
	return tx.WithTransaction(ctx, s.repo.DB, func(ctx context.Context, txdb *gorm.DB) error {
		interview, err := s.repo.Interview.GetForUpdate(ctx, txdb, job.InterviewID)
		if err != nil {
			return err
		}
		// Question mutation stops once the interview is COMPLETED, including
		// late background fills.
		if interview.Status != models.InterviewStatusInProgress {
			s.logger.Info("Dropping generated question for finished interview",
				zap.String("interviewId", job.InterviewID),
				zap.Int32("sequenceNumber", job.SequenceNumber))
			return nil
		}
		rows, err := s.repo.Question.FillReservation(ctx, txdb, job.QuestionID, text, estimatedMinutes, aiGenerated)
		if err != nil {
			return err
		}
		if rows == 0 {
			s.logger.Warn("Reservation no longer open, nothing to fill",
				zap.String("interviewId", job.InterviewID),
				zap.String("questionId", job.QuestionID))
		}
		return nil
	})
}

// ForceComplete ends an interview regardless of quota. No-op when the
// interview is already COMPLETED.
func (s *Quinn) ForceComplete(ctx context.Context, interviewID string, reason models.CompletionReason) error {
	var interview *models.Interview
	completed := false
	txErr := tx.WithTransaction(ctx, s.repo.DB, func(ctx context.Context, txdb *gorm.DB) error {
		var err error
		interview, err = s.repo.Interview.GetForUpdate(ctx, txdb, interviewID)
		if err != nil {
			return err
		}
		if interview.Status != models.InterviewStatusInProgress {
			return nil
		}
		if err := s.repo.Interview.Complete(ctx, txdb, interview, s.now()); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if txErr != nil {
		return txErr
	}
	if completed {
		s.publishCompleted(ctx, interview, reason)
	}
	return nil
}

// HandleApplicationWithdrawn consumes application.withdrawn events from the
// main backend and force-completes the affected interview.
func (s *Quinn) HandleApplicationWithdrawn(ctx context.Context, msg amqp.Delivery) error {
	var event struct {
		ApplicationID string `json:"applicationId"`
	}
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("malformed withdrawn event: %w", err)
	}
	interview, err := s.repo.Interview.FindActiveByApplication(ctx, event.ApplicationID)
	if err != nil {
		return err
	}
	if interview == nil {
		return nil
	}
	return s.ForceComplete(ctx, interview.ID, models.CompletionReasonWithdrawn)
}

type interviewCompletedEvent struct {
	Event         string    `json:"event"`
	InterviewID   string    `json:"interviewId"`
	ApplicationID string    `json:"applicationId"`
	Reason        string    `json:"reason"`
	CompletedAt   time.Time `json:"completedAt"`
}

func (s *Quinn) publishCompleted(ctx context.Context, interview *models.Interview, reason models.CompletionReason) {
	metrics.InterviewsCompleted.WithLabelValues(string(reason)).Inc()
	completedAt := s.now()
	if interview.CompletedAt != nil {
		completedAt = *interview.CompletedAt
	}
	body, err := json.Marshal(interviewCompletedEvent{
		Event:         "interview.completed",
		InterviewID:   interview.ID,
		ApplicationID: interview.ApplicationID,
		Reason:        string(reason),
		CompletedAt:   completedAt,
	})
	if err != nil {
		s.logger.Error("Failed to marshal completion event", zap.Error(err))
		return
	}
	if err := s.rabbit.Publish(ctx, body); err != nil {
		s.logger.Error("Failed to publish completion event",
			zap.String("interviewId", interview.ID),
			zap.String("reason", string(reason)),
			zap.Error(err))
		return
	}
	s.logger.Info("Interview completed",
		zap.String("interviewId", interview.ID),
		zap.String("reason", string(reason)))
}

func describeJob(job *models.Job) string {
	parts := make([]string, 0, 4)
	if job.Title != "" {
		parts = append(parts, fmt.Sprintf("Title: %s", job.Title))
	}
	if job.Objective != "" {
		parts = append(parts, fmt.Sprintf("Objective: %s", job.Objective))
	}
	if job.Goals != "" {
		parts = append(parts, fmt.Sprintf("Goals: %s", job.Goals))
	}
	if job.Description != "" {
		parts = append(parts, job.Description)
	}
	return strings.Join(parts, "\n")
}

func fallbackQuestion(category string) string {
	if category == "" {
		return "Could you walk me through a project you are particularly proud of and the role you played in it?"
	}
	return fmt.Sprintf("Could you describe a challenging situation related to %s that you handled, and what you learned from it?", category)
}
