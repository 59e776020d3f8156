package features

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quinn/internal/metrics"
	sv "quinn/internal/service"
)

// GenerationJob asks the pool to fill one reserved question slot. It carries
// everything the fulfillment path needs so workers never touch request state.
type GenerationJob struct {
	InterviewID    string
	ApplicationID  string
	QuestionID     string
	SequenceNumber int32
	Config         sv.QuestionConfig
	EnqueuedAt     time.Time
}

// GenerationWorkerPool runs the background AI follow-up calls. Jobs are
// retried with backoff; a job that exhausts its attempts gets the fallback
// fill so no placeholder stays visible forever.
type GenerationWorkerPool struct {
	jobQueue        chan GenerationJob
	workerCount     int
	maxAttempts     int
	retryBackoff    time.Duration
	maxTaskWaitTime time.Duration
	jobTimeout      time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

func NewGenerationWorkerPool(size, queueCapacity, maxAttempts int, retryBackoff, maxTaskWaitTime, jobTimeout time.Duration) *GenerationWorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &GenerationWorkerPool{
		jobQueue:        make(chan GenerationJob, queueCapacity),
		workerCount:     size,
		maxAttempts:     maxAttempts,
		retryBackoff:    retryBackoff,
		maxTaskWaitTime: maxTaskWaitTime,
		jobTimeout:      jobTimeout,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (wp *GenerationWorkerPool) Start(service *Quinn) {
	service.logger.Info("Starting generation worker pool",
		zap.Int("workerCount", wp.workerCount),
		zap.Int("queueCapacity", cap(wp.jobQueue)),
		zap.Int("maxAttempts", wp.maxAttempts))

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(service, i)
	}
}

func (wp *GenerationWorkerPool) Stop() {
	wp.cancel()
	close(wp.jobQueue)
	wp.wg.Wait()
}

func (wp *GenerationWorkerPool) worker(service *Quinn, workerID int) {
	defer wp.wg.Done()
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				service.logger.Info("Worker stopping - job queue closed", zap.Int("workerID", workerID))
				return
			}
			metrics.QueueSize.Set(float64(len(wp.jobQueue)))

			waitTime := time.Since(job.EnqueuedAt)
			service.logger.Debug("Worker processing job",
				zap.Int("workerID", workerID),
				zap.String("interviewID", job.InterviewID),
				zap.Int32("sequenceNumber", job.SequenceNumber),
				zap.Duration("waitTime", waitTime))

			startTime := time.Now()
			wp.process(service, job)
			metrics.JobsProcessed.Inc()

			service.logger.Debug("Worker completed job",
				zap.Int("workerID", workerID),
				zap.String("interviewID", job.InterviewID),
				zap.Int32("sequenceNumber", job.SequenceNumber),
				zap.Duration("processingTime", time.Since(startTime)))

		case <-wp.ctx.Done():
			service.logger.Info("Worker stopping - context cancelled", zap.Int("workerID", workerID))
			return
		}
	}
}

// process runs one job to a terminal outcome: a successful fill, a
// force-complete on cache expiry, or the fallback fill after the last
// attempt. Nothing propagates back to the submission caller.
func (wp *GenerationWorkerPool) process(service *Quinn, job GenerationJob) {
	var lastErr error
	for attempt := 1; attempt <= wp.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
		lastErr = service.fulfillReservation(ctx, job)
		cancel()
		if lastErr == nil {
			return
		}
		service.logger.Warn("Generation attempt failed",
			zap.String("interviewID", job.InterviewID),
			zap.String("questionID", job.QuestionID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", wp.maxAttempts),
			zap.Error(lastErr))
		if attempt < wp.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * wp.retryBackoff):
			case <-wp.ctx.Done():
				return
			}
		}
	}

	metrics.JobsFailed.Inc()
	service.logger.Error("Generation attempts exhausted, filling fallback question",
		zap.String("interviewID", job.InterviewID),
		zap.String("questionID", job.QuestionID),
		zap.Error(lastErr))

	ctx, cancel := context.WithTimeout(context.Background(), wp.jobTimeout)
	defer cancel()
	if err := service.fillFallback(ctx, job); err != nil {
		service.logger.Error("Failed to fill fallback question",
			zap.String("interviewID", job.InterviewID),
			zap.String("questionID", job.QuestionID),
			zap.Error(err))
	}
}

func (wp *GenerationWorkerPool) EnqueueJob(logger *zap.Logger, job GenerationJob) bool {
	job.EnqueuedAt = time.Now()
	logger.Info("Enqueuing question generation job",
		zap.String("interviewID", job.InterviewID),
		zap.Int32("sequenceNumber", job.SequenceNumber))

	select {
	case wp.jobQueue <- job:
		metrics.JobsEnqueued.Inc()
		metrics.QueueSize.Set(float64(len(wp.jobQueue)))
		return true

	case <-time.After(wp.maxTaskWaitTime):
		metrics.JobsDropped.Inc()
		logger.Error("Job enqueue timeout - queue may be full or workers unavailable",
			zap.String("interviewID", job.InterviewID),
			zap.Int32("sequenceNumber", job.SequenceNumber),
			zap.Duration("timeout", wp.maxTaskWaitTime),
			zap.Int("queueSize", len(wp.jobQueue)),
			zap.Int("queueCapacity", cap(wp.jobQueue)))
		return false
	}
}
