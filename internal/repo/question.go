package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quinn/internal/errs"
	"quinn/internal/models"
)

type IQuestion interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.InterviewQuestion) error
	CreateReservation(ctx context.Context, tx *gorm.DB, question *models.InterviewQuestion) error
	Get(ctx context.Context, tx *gorm.DB, id string) (*models.InterviewQuestion, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.InterviewQuestion) error
	// FillReservation overwrites a reserved row's text in place; the row keeps
	// its id and sequence number. Returns the number of rows updated so the
	// caller can tell whether the reservation was still open.
	FillReservation(ctx context.Context, tx *gorm.DB, id string, text string, estimatedTimeMinutes int32, aiGenerated bool) (int64, error)
	CountByInterview(ctx context.Context, tx *gorm.DB, interviewID string) (int64, error)
	// ListVisible returns the non-reserved questions in sequence order.
	ListVisible(ctx context.Context, tx *gorm.DB, interviewID string) ([]models.InterviewQuestion, error)
	// QaPairs returns answered question/answer pairs in sequence order for
	// use as generation context.
	QaPairs(ctx context.Context, interviewID string) ([]models.QaPair, error)
}

type GormQuestion struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) IQuestion {
	return &GormQuestion{db: db}
}

func (r *GormQuestion) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.InterviewQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(questions).Error
}

func (r *GormQuestion) CreateReservation(ctx context.Context, tx *gorm.DB, question *models.InterviewQuestion) error {
	question.State = models.QuestionStateReserved
	return tx.WithContext(ctx).Create(question).Error
}

func (r *GormQuestion) Get(ctx context.Context, tx *gorm.DB, id string) (*models.InterviewQuestion, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var question models.InterviewQuestion
	err := db.WithContext(ctx).First(&question, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.ErrNotFound{Resource: "question", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *GormQuestion) Update(ctx context.Context, tx *gorm.DB, question *models.InterviewQuestion) error {
	return tx.WithContext(ctx).Save(question).Error
}

func (r *GormQuestion) FillReservation(ctx context.Context, tx *gorm.DB, id string, text string, estimatedTimeMinutes int32, aiGenerated bool) (int64, error) {
	updates := map[string]any{
		"question_text":   text,
		"state":           models.QuestionStateGenerated,
		"is_ai_generated": aiGenerated,
	}
	if estimatedTimeMinutes > 0 {
		updates["estimated_time_minutes"] = estimatedTimeMinutes
	}
	res := tx.WithContext(ctx).
		Model(&models.InterviewQuestion{}).
		Where("id = ? AND state = ?", id, models.QuestionStateReserved).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *GormQuestion) CountByInterview(ctx context.Context, tx *gorm.DB, interviewID string) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&models.InterviewQuestion{}).
		Where("interview_id = ?", interviewID).
		Count(&count).Error
	return count, err
}

func (r *GormQuestion) ListVisible(ctx context.Context, tx *gorm.DB, interviewID string) ([]models.InterviewQuestion, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var questions []models.InterviewQuestion
	err := db.WithContext(ctx).
		Where("interview_id = ? AND state <> ?", interviewID, models.QuestionStateReserved).
		Order("sequence_number ASC").
		Find(&questions).Error
	return questions, err
}

func (r *GormQuestion) QaPairs(ctx context.Context, interviewID string) ([]models.QaPair, error) {
	var questions []models.InterviewQuestion
	err := r.db.WithContext(ctx).
		Where("interview_id = ? AND state = ?", interviewID, models.QuestionStateAnswered).
		Order("sequence_number ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}

	pairs := make([]models.QaPair, 0, len(questions))
	for _, q := range questions {
		answer := ""
		if q.Answer != nil {
			answer = *q.Answer
		}
		pairs = append(pairs, models.QaPair{Question: q.QuestionText, Answer: answer})
	}
	return pairs, nil
}
