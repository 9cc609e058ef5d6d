// Package scheduler provides cron-based scheduling for DialogPipe.
//
// It backs recurring outbound messages such as follow-up nudges registered
// through the API.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string]cron.EntryID
	next int64
}

// NewScheduler creates and starts a cron scheduler using the standard 5-field
// expression format (min, hour, dom, month, dow).
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c, jobs: make(map[string]cron.EntryID)}
}

// AddJob schedules a task using the provided cron expression and returns the
// job id. It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) (string, error) {
	entryID, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("job_%d", s.next)
	s.jobs[id] = entryID
	return id, nil
}

// RemoveJob cancels a scheduled job by id. Removing an unknown id is a no-op.
func (s *Scheduler) RemoveJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[id]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, id)
	}
}

// JobCount returns the number of registered jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
