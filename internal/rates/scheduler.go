package rates

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Job is a named task run on a cron spec ("@every 1h", "0 3 * * *", ...).
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context)
}

// Scheduler runs background jobs. A panicking job is recovered and logged;
// overlapping runs of the same job are skipped.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

// NewScheduler registers jobs. Jobs with an empty spec are skipped.
func NewScheduler(jobs ...Job) (*Scheduler, error) {
	l := cronLogger{l: log.Logger}
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))

	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, ctx: ctx, stop: stop}
	for _, j := range jobs {
		if j.Spec == "" || j.Run == nil {
			continue
		}
		j := j
		if _, err := c.AddFunc(j.Spec, func() {
			start := time.Now()
			j.Run(s.ctx)
			log.Debug().Str("job", j.Name).Dur("took", time.Since(start)).Msg("scheduler: job finished")
		}); err != nil {
			stop()
			return nil, err
		}
		log.Info().Str("job", j.Name).Str("spec", j.Spec).Msg("scheduler: job registered")
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Stop cancels the jobs' context and waits for running jobs to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshJob refills the cache on spec once the current window has expired,
// so readers rarely pay for the upstream call. Inside a window it is a plain
// hit and the cached snapshot stays untouched.
func RefreshJob(c *Cache, spec string) Job {
	return Job{
		Name: "rates-refresh",
		Spec: spec,
		Run: func(ctx context.Context) {
			s := c.Get(ctx)
			log.Info().Str("source", string(s.Source)).Time("fetched_at", s.FetchedAt).Msg("rates: refresh tick")
		},
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}
