package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quinn/internal/errs"
	"quinn/internal/models"
)

type IInterview interface {
	Create(ctx context.Context, tx *gorm.DB, interview *models.Interview) error
	Get(ctx context.Context, id string) (*models.Interview, error)
	// GetForUpdate locks the interview row for the rest of the transaction.
	// Concurrent submissions against the same interview serialize here, which
	// is what keeps sequence-number allocation collision free.
	GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Interview, error)
	// FindActiveByApplication returns the IN_PROGRESS interview for an
	// application, or nil when there is none.
	FindActiveByApplication(ctx context.Context, applicationID string) (*models.Interview, error)
	Complete(ctx context.Context, tx *gorm.DB, interview *models.Interview, at time.Time) error
	ListExpired(ctx context.Context, startedBefore time.Time) ([]models.Interview, error)
}

type GormInterview struct {
	db *gorm.DB
}

func NewInterviewRepository(db *gorm.DB) IInterview {
	return &GormInterview{db: db}
}

func (r *GormInterview) Create(ctx context.Context, tx *gorm.DB, interview *models.Interview) error {
	return tx.WithContext(ctx).Create(interview).Error
}

func (r *GormInterview) Get(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).First(&interview, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.ErrNotFound{Resource: "interview", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &interview, nil
}

func (r *GormInterview) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Interview, error) {
	var interview models.Interview
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&interview, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.ErrNotFound{Resource: "interview", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &interview, nil
}

func (r *GormInterview) FindActiveByApplication(ctx context.Context, applicationID string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND status = ?", applicationID, models.InterviewStatusInProgress).
		First(&interview).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &interview, nil
}

// Complete moves an interview to COMPLETED and stamps completedAt exactly
// once. The status guard makes the transition idempotent under races.
func (r *GormInterview) Complete(ctx context.Context, tx *gorm.DB, interview *models.Interview, at time.Time) error {
	res := tx.WithContext(ctx).
		Model(&models.Interview{}).
		Where("id = ? AND status = ?", interview.ID, models.InterviewStatusInProgress).
		Updates(map[string]any{
			"status":       models.InterviewStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		interview.Status = models.InterviewStatusCompleted
		interview.CompletedAt = &at
	}
	return nil
}

func (r *GormInterview) ListExpired(ctx context.Context, startedBefore time.Time) ([]models.Interview, error) {
	var interviews []models.Interview
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.InterviewStatusInProgress, startedBefore).
		Find(&interviews).Error
	return interviews, err
}
