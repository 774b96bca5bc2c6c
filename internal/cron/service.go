// Package cron schedules the recurring background tasks.
package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

const jobTimeout = 10 * time.Minute

// Job is a named task run on a cron schedule. Schedule expressions use the
// six-field form with seconds, e.g. "0 0 17 * * *" for 17:00 UTC daily.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type Service struct {
	mu     sync.Mutex
	cron   *rcron.Cron
	jobs   []Job
	cancel context.CancelFunc
}

func NewService() *Service {
	return &Service{}
}

// Add registers a job. Must be called before Start.
func (s *Service) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
	s.cron = rcron.New(rcron.WithSeconds(), rcron.WithLocation(time.UTC))

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() {
			s.execute(runCtx, job)
		}); err != nil {
			cancel()
			return fmt.Errorf("register job %s (%s): %w", job.Name, job.Schedule, err)
		}
	}

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", len(s.jobs))
	return nil
}

func (s *Service) execute(ctx context.Context, job Job) {
	log.Printf("[cron] executing job %s", job.Name)
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	if err := job.Run(jobCtx); err != nil {
		log.Printf("[cron] job %s failed: %v", job.Name, err)
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	log.Printf("[cron] stopped")
}
