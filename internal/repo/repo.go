package repo

import "gorm.io/gorm"

type Repository struct {
	Interview   IInterview
	Question    IQuestion
	Application IApplication
	DB          *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{
		DB:          db,
		Interview:   NewInterviewRepository(db),
		Question:    NewQuestionRepository(db),
		Application: NewApplicationRepository(db),
	}
}
