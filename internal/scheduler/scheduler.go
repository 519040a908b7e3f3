// Package scheduler binds job runners to cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/robfig/cron/v3"
)

// Triggerer is the part of jobs.Runner the scheduler uses.
type Triggerer interface {
	Job() jobs.JobType
	Trigger(ctx context.Context, source string) bool
}

// Entry describes one scheduled job.
type Entry struct {
	Job  jobs.JobType `json:"job"`
	Spec string       `json:"spec"`
	Next time.Time    `json:"next"`
	Prev time.Time    `json:"prev,omitempty"`
}

// cronParser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler fires runner triggers on cron schedules. Each firing only
// triggers the runner, so overlapping is handled by the runner's guard.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location

	mu    sync.RWMutex
	specs map[cron.EntryID]string
	jobs  map[cron.EntryID]jobs.JobType
}

// New creates a scheduler in the named time zone. An invalid zone falls
// back to UTC with a warning.
func New(ctx context.Context, timeZone string) *Scheduler {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("time_zone", timeZone).Msg("Invalid time zone, falling back to UTC")
		loc = time.UTC
	}

	return &Scheduler{
		cron:  cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
		loc:   loc,
		specs: make(map[cron.EntryID]string),
		jobs:  make(map[cron.EntryID]jobs.JobType),
	}
}

// Location returns the scheduler's time zone.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Add schedules t on spec. Triggers use ctx for logging.
func (s *Scheduler) Add(ctx context.Context, spec string, t Triggerer) error {
	id, err := s.cron.AddFunc(spec, func() {
		t.Trigger(ctx, jobs.TriggerSchedule)
	})
	if err != nil {
		return fmt.Errorf("unable to schedule %s with %q: %w", t.Job(), spec, err)
	}

	s.mu.Lock()
	s.specs[id] = spec
	s.jobs[id] = t.Job()
	s.mu.Unlock()

	log := logger.FromContext(ctx)

	log.Info().
		Str("job", string(t.Job())).
		Str("spec", spec).
		Str("time_zone", s.loc.String()).
		Msg("Scheduled job")
	return nil
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop. The returned context is done once any
// in-progress trigger calls return.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries lists scheduled jobs ordered by job name.
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for _, e := range s.cron.Entries() {
		entries = append(entries, Entry{
			Job:  s.jobs[e.ID],
			Spec: s.specs[e.ID],
			Next: e.Next,
			Prev: e.Prev,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Job < entries[j].Job })
	return entries
}

// ValidateSpec reports whether spec is a valid schedule expression.
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}
