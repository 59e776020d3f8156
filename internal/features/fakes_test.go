package features

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quinn/internal/errs"
	"quinn/internal/models"
	repo "quinn/internal/repo"
	sv "quinn/internal/service"
)

// The fakes below keep rows in memory; the sqlite handle only backs the
// transaction wrapper so the orchestrator's commit flow stays intact.

type fakeInterviewRepo struct {
	mu         sync.Mutex
	interviews map[string]*models.Interview
	createErr  error
	// findActiveResponses, when non-nil, is consumed per call to simulate a
	// concurrent winner appearing between lookups.
	findActiveResponses []*models.Interview
}

func newFakeInterviewRepo() *fakeInterviewRepo {
	return &fakeInterviewRepo{interviews: map[string]*models.Interview{}}
}

func (f *fakeInterviewRepo) Create(ctx context.Context, tx *gorm.DB, interview *models.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.interviews {
		if existing.ApplicationID == interview.ApplicationID && existing.Status == models.InterviewStatusInProgress {
			return gorm.ErrDuplicatedKey
		}
	}
	clone := *interview
	f.interviews[interview.ID] = &clone
	return nil
}

func (f *fakeInterviewRepo) Get(ctx context.Context, id string) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	interview, ok := f.interviews[id]
	if !ok {
		return nil, &errs.ErrNotFound{Resource: "interview", ID: id}
	}
	clone := *interview
	return &clone, nil
}

func (f *fakeInterviewRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Interview, error) {
	return f.Get(ctx, id)
}

func (f *fakeInterviewRepo) FindActiveByApplication(ctx context.Context, applicationID string) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findActiveResponses != nil {
		next := f.findActiveResponses[0]
		if len(f.findActiveResponses) > 1 {
			f.findActiveResponses = f.findActiveResponses[1:]
		}
		return next, nil
	}
	for _, interview := range f.interviews {
		if interview.ApplicationID == applicationID && interview.Status == models.InterviewStatusInProgress {
			clone := *interview
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeInterviewRepo) Complete(ctx context.Context, tx *gorm.DB, interview *models.Interview, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.interviews[interview.ID]
	if !ok {
		return &errs.ErrNotFound{Resource: "interview", ID: interview.ID}
	}
	if stored.Status != models.InterviewStatusInProgress {
		return nil
	}
	stored.Status = models.InterviewStatusCompleted
	stored.CompletedAt = &at
	interview.Status = models.InterviewStatusCompleted
	interview.CompletedAt = &at
	return nil
}

func (f *fakeInterviewRepo) ListExpired(ctx context.Context, startedBefore time.Time) ([]models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []models.Interview
	for _, interview := range f.interviews {
		if interview.Status == models.InterviewStatusInProgress &&
			interview.StartedAt != nil && interview.StartedAt.Before(startedBefore) {
			expired = append(expired, *interview)
		}
	}
	return expired, nil
}

func (f *fakeInterviewRepo) put(interview *models.Interview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *interview
	f.interviews[interview.ID] = &clone
}

func (f *fakeInterviewRepo) stored(t *testing.T, id string) *models.Interview {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	interview, ok := f.interviews[id]
	require.True(t, ok, "interview %s not stored", id)
	clone := *interview
	return &clone
}

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[string]*models.InterviewQuestion
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: map[string]*models.InterviewQuestion{}}
}

func (f *fakeQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.InterviewQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range questions {
		clone := *q
		f.questions[q.ID] = &clone
	}
	return nil
}

func (f *fakeQuestionRepo) CreateReservation(ctx context.Context, tx *gorm.DB, question *models.InterviewQuestion) error {
	question.State = models.QuestionStateReserved
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.questions {
		if existing.InterviewID == question.InterviewID && existing.SequenceNumber == question.SequenceNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	clone := *question
	f.questions[question.ID] = &clone
	return nil
}

func (f *fakeQuestionRepo) Get(ctx context.Context, tx *gorm.DB, id string) (*models.InterviewQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	question, ok := f.questions[id]
	if !ok {
		return nil, &errs.ErrNotFound{Resource: "question", ID: id}
	}
	clone := *question
	return &clone, nil
}

func (f *fakeQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.InterviewQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *question
	f.questions[question.ID] = &clone
	return nil
}

func (f *fakeQuestionRepo) FillReservation(ctx context.Context, tx *gorm.DB, id string, text string, estimatedTimeMinutes int32, aiGenerated bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	question, ok := f.questions[id]
	if !ok || question.State != models.QuestionStateReserved {
		return 0, nil
	}
	question.QuestionText = text
	question.State = models.QuestionStateGenerated
	question.IsAiGenerated = aiGenerated
	if estimatedTimeMinutes > 0 {
		question.EstimatedTimeMinutes = estimatedTimeMinutes
	}
	return 1, nil
}

func (f *fakeQuestionRepo) CountByInterview(ctx context.Context, tx *gorm.DB, interviewID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, question := range f.questions {
		if question.InterviewID == interviewID {
			count++
		}
	}
	return count, nil
}

func (f *fakeQuestionRepo) ListVisible(ctx context.Context, tx *gorm.DB, interviewID string) ([]models.InterviewQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var visible []models.InterviewQuestion
	for _, question := range f.questions {
		if question.InterviewID == interviewID && question.State != models.QuestionStateReserved {
			visible = append(visible, *question)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].SequenceNumber < visible[j].SequenceNumber })
	return visible, nil
}

func (f *fakeQuestionRepo) QaPairs(ctx context.Context, interviewID string) ([]models.QaPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var answered []models.InterviewQuestion
	for _, question := range f.questions {
		if question.InterviewID == interviewID && question.State == models.QuestionStateAnswered {
			answered = append(answered, *question)
		}
	}
	sort.Slice(answered, func(i, j int) bool { return answered[i].SequenceNumber < answered[j].SequenceNumber })
	pairs := make([]models.QaPair, 0, len(answered))
	for _, q := range answered {
		answer := ""
		if q.Answer != nil {
			answer = *q.Answer
		}
		pairs = append(pairs, models.QaPair{Question: q.QuestionText, Answer: answer})
	}
	return pairs, nil
}

func (f *fakeQuestionRepo) put(question *models.InterviewQuestion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *question
	f.questions[question.ID] = &clone
}

func (f *fakeQuestionRepo) stored(t *testing.T, id string) *models.InterviewQuestion {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	question, ok := f.questions[id]
	require.True(t, ok, "question %s not stored", id)
	clone := *question
	return &clone
}

func (f *fakeQuestionRepo) byInterview(interviewID string) []models.InterviewQuestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.InterviewQuestion
	for _, question := range f.questions {
		if question.InterviewID == interviewID {
			all = append(all, *question)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SequenceNumber < all[j].SequenceNumber })
	return all
}

type fakeApplicationRepo struct {
	applications map[string]*models.Application
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{applications: map[string]*models.Application{}}
}

func (f *fakeApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	application, ok := f.applications[id]
	if !ok {
		return nil, &errs.ErrNotFound{Resource: "application", ID: id}
	}
	return application, nil
}

type generatorCall struct {
	req *sv.GenerateRequest
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []generatorCall
	err   error
}

func (f *fakeGenerator) GenerateInterviewQuestions(ctx context.Context, req *sv.GenerateRequest) ([]sv.GeneratedQuestion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, generatorCall{req: req})
	callNumber := len(f.calls)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	generated := make([]sv.GeneratedQuestion, len(req.ExpectedQuestionsConfig))
	for i := range generated {
		generated[i] = sv.GeneratedQuestion{
			Question:             fmt.Sprintf("Generated question %d.%d", callNumber, i+1),
			EstimatedTimeMinutes: req.ExpectedQuestionsConfig[i].ExpectedTimeToAnswer,
		}
	}
	return generated, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGenerator) lastCall(t *testing.T) generatorCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type cacheEntry struct {
	value string
	ttl   time.Duration
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]cacheEntry{}}
}

func (f *fakeCache) Set(ctx context.Context, key string, value string, expireTime time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = cacheEntry{value: value, ttl: expireTime}
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	return []byte(entry.value), nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	delete(f.entries, key)
	return ok, nil
}

func (f *fakeCache) entry(t *testing.T, key string) cacheEntry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[key]
	require.True(t, ok, "cache entry %s missing", key)
	return entry
}

type fakeRabbit struct {
	mu        sync.Mutex
	published [][]byte
}

func (f *fakeRabbit) Consume(ctx context.Context, consumeFunction func(ctx context.Context, msg amqp.Delivery) error) error {
	return nil
}

func (f *fakeRabbit) Publish(ctx context.Context, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, body)
	return nil
}

func (f *fakeRabbit) publishedBodies() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.published...)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type testEnv struct {
	service    *Quinn
	interviews *fakeInterviewRepo
	questions  *fakeQuestionRepo
	apps       *fakeApplicationRepo
	generator  *fakeGenerator
	cache      *fakeCache
	rabbit     *fakeRabbit
	extractor  *fakeExtractor
}

func newTestEnv(t *testing.T, policy Policy) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	env := &testEnv{
		interviews: newFakeInterviewRepo(),
		questions:  newFakeQuestionRepo(),
		apps:       newFakeApplicationRepo(),
		generator:  &fakeGenerator{},
		cache:      newFakeCache(),
		rabbit:     &fakeRabbit{},
		extractor:  &fakeExtractor{text: "Five years of backend experience with Go and Postgres."},
	}

	repository := &repo.Repository{
		Interview:   env.interviews,
		Question:    env.questions,
		Application: env.apps,
		DB:          db,
	}
	env.service = New(repository, env.generator, env.cache, env.extractor, env.rabbit, policy, zap.NewNop())
	return env
}

func testPolicy(quota int32, batch int) Policy {
	return Policy{
		TotalQuestionsToAsk: quota,
		InitialBatchSize:    batch,
		MaxDuration:         30 * time.Minute,
		QuestionConfigs: []sv.QuestionConfig{
			{Category: "background", ExpectedTimeToAnswer: 3, TotalMarks: 5},
			{Category: "technical", ExpectedTimeToAnswer: 5, TotalMarks: 10},
		},
	}
}

func (env *testEnv) seedApplication(id string) *models.Application {
	application := &models.Application{
		ID:          id,
		JobID:       "job-1",
		CandidateID: "candidate-1",
		ResumeURL:   "https://storage.example.com/resumes/" + id,
		Job: &models.Job{
			ID:                  "job-1",
			Title:               "Backend Engineer",
			Description:         "Build and operate recruitment services.",
			SkillDescriptionMap: models.JSONMap{"go": "builds services in Go"},
		},
	}
	env.apps.applications[id] = application
	return application
}
