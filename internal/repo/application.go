package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quinn/internal/errs"
	"quinn/internal/models"
)

// IApplication supplies application and job context for interview seeding.
// The rows are owned by the main recruitment backend; this side is read-only.
type IApplication interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

type GormApplication struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) IApplication {
	return &GormApplication{db: db}
}

func (r *GormApplication) FindByID(ctx context.Context, id string) (*models.Application, error) {
	var application models.Application
	err := r.db.WithContext(ctx).Preload("Job").First(&application, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.ErrNotFound{Resource: "application", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if application.Job == nil {
		return nil, &errs.ErrNotFound{Resource: "job", ID: application.JobID}
	}
	return &application, nil
}
