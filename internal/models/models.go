package models

import (
	"time"
)

// InterviewStatus is the lifecycle state of an interview session.
// Transitions only move forward: PENDING -> IN_PROGRESS -> COMPLETED.
type InterviewStatus string

const (
	InterviewStatusPending    InterviewStatus = "PENDING"
	InterviewStatusInProgress InterviewStatus = "IN_PROGRESS"
	InterviewStatusCompleted  InterviewStatus = "COMPLETED"
)

// QuestionState tracks how far a question row has progressed.
// A RESERVED row holds a sequence number while its text is generated
// in the background; it is never shown to the candidate.
type QuestionState string

const (
	QuestionStateReserved  QuestionState = "RESERVED"
	QuestionStateGenerated QuestionState = "GENERATED"
	QuestionStateAnswered  QuestionState = "ANSWERED"
)

// CompletionReason is attached to lifecycle events when an interview ends.
type CompletionReason string

const (
	CompletionReasonQuota        CompletionReason = "quota"
	CompletionReasonTimeLimit    CompletionReason = "time_limit"
	CompletionReasonCacheExpired CompletionReason = "cache_expired"
	CompletionReasonWithdrawn    CompletionReason = "withdrawn"
)

// Interview is one timed, quota-bounded question session for a job application.
// The partial unique index guarantees at most one IN_PROGRESS interview per
// application even under concurrent starts.
type Interview struct {
	ID                  string          `gorm:"primaryKey;size:36" json:"id"`
	ApplicationID       string          `gorm:"size:36;not null;uniqueIndex:ux_interviews_active_application,where:status = 'IN_PROGRESS'" json:"applicationId"`
	JobID               string          `gorm:"size:36;not null" json:"jobId"`
	CandidateID         string          `gorm:"size:36;not null" json:"candidateId"`
	Status              InterviewStatus `gorm:"size:16;not null;default:PENDING" json:"status"`
	TotalQuestionsToAsk int32           `gorm:"not null" json:"totalQuestionsToAsk"`
	StartedAt           *time.Time      `json:"startedAt,omitempty"`
	CompletedAt         *time.Time      `json:"completedAt,omitempty"`
	TotalMarks          float64         `gorm:"not null;default:0" json:"totalMarks"`
	ObtainedMarks       float64         `gorm:"not null;default:0" json:"obtainedMarks"`
	IsChecked           bool            `gorm:"not null;default:false" json:"isChecked"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Interview) TableName() string { return "interviews" }

// InterviewQuestion is one slot in an interview. Sequence numbers per
// interview form a contiguous run starting at 1; the unique index is the
// backstop against double allocation.
type InterviewQuestion struct {
	ID                   string        `gorm:"primaryKey;size:36" json:"id"`
	InterviewID          string        `gorm:"size:36;not null;index;uniqueIndex:ux_interview_questions_seq" json:"interviewId"`
	QuestionText         string        `gorm:"type:text;not null" json:"questionText"`
	Answer               *string       `gorm:"type:text" json:"answer,omitempty"`
	MediaRef             *string       `gorm:"size:512" json:"mediaRef,omitempty"`
	SequenceNumber       int32         `gorm:"not null;uniqueIndex:ux_interview_questions_seq" json:"sequenceNumber"`
	State                QuestionState `gorm:"size:16;not null;default:GENERATED" json:"state"`
	IsAiGenerated        bool          `gorm:"not null;default:true" json:"isAiGenerated"`
	EstimatedTimeMinutes int32         `gorm:"not null;default:4" json:"estimatedTimeMinutes"`
	Category             string        `gorm:"size:64" json:"category"`
	TotalMarks           float64       `gorm:"not null;default:0" json:"totalMarks"`
	ObtainedMarks        float64       `gorm:"not null;default:0" json:"obtainedMarks"`
	IsChecked            bool          `gorm:"not null;default:false" json:"isChecked"`
	CreatedAt            time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (InterviewQuestion) TableName() string { return "interview_questions" }

// Application and Job are owned by the wider recruitment backend; this
// service only reads them to build generation context.
type Application struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	JobID       string    `gorm:"size:36;not null" json:"jobId"`
	CandidateID string    `gorm:"size:36;not null" json:"candidateId"`
	ResumeURL   string    `gorm:"size:1024" json:"resumeUrl"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Job *Job `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

func (Application) TableName() string { return "applications" }

type Job struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	Title               string    `gorm:"size:256;not null" json:"title"`
	Objective           string    `gorm:"type:text" json:"objective"`
	Goals               string    `gorm:"type:text" json:"goals"`
	Description         string    `gorm:"type:text" json:"description"`
	ExperienceRequired  int32     `json:"experienceRequired"`
	SkillDescriptionMap JSONMap   `gorm:"type:jsonb" json:"skillDescriptionMap"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Job) TableName() string { return "jobs" }

// QaPair is a prior question/answer used as context for follow-up generation.
type QaPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
