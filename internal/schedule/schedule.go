// Package schedule runs unattended exports on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"timereport/internal/calendar"
	"timereport/internal/config"
	"timereport/internal/export"
	"timereport/internal/host"
	appLog "timereport/internal/log"
)

var ErrNoMailbox = errors.New("schedule: export.mailbox is not set")

// Job exports the last Days days, today included, for Mailbox into
// OutputDir.
type Job struct {
	Sources   calendar.Factory
	Token     string
	Mailbox   string
	Days      int
	OutputDir string
	Format    string
	Encoding  string
	Location  *time.Location
	Guard     host.Guard
	Recorder  export.Recorder // optional

	now func() time.Time
}

// NewJob builds the job described by cfg.Export.
func NewJob(cfg *config.Config, sources calendar.Factory, guard host.Guard) *Job {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &Job{
		Sources:   sources,
		Token:     cfg.Export.Token,
		Mailbox:   cfg.Export.Mailbox,
		Days:      cfg.Export.ScheduleDays,
		OutputDir: cfg.Export.OutputDir,
		Format:    cfg.Export.Format,
		Encoding:  cfg.Export.Encoding,
		Location:  loc,
		Guard:     guard,
	}
}

// Range returns the from and to dates (yyyy-mm-dd) of the days ending on
// the day of now.
func Range(now time.Time, days int, loc *time.Location) (from, to string) {
	if days < 1 {
		days = 1
	}
	today := now.In(loc)
	first := today.AddDate(0, 0, -(days - 1))
	return first.Format("2006-01-02"), today.Format("2006-01-02")
}

// Run performs one export and returns the path of the written file.
func (j *Job) Run(ctx context.Context) (string, error) {
	if j.Mailbox == "" {
		return "", ErrNoMailbox
	}
	wr, err := export.NewWriter(j.Format, j.Encoding)
	if err != nil {
		return "", err
	}
	src, err := j.Sources(j.Token, j.Mailbox)
	if err != nil {
		return "", err
	}

	loc := j.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	from, to := Range(now(), j.Days, loc)

	c := &export.Collector{
		Source:   src,
		Mailbox:  host.StaticMailbox(j.Mailbox),
		Guard:    j.Guard,
		Location: loc,
		Writer:   wr,
		Recorder: j.Recorder,
	}
	f, err := c.Collect(ctx, from, to)
	if err != nil {
		return "", err
	}

	path := filepath.Join(j.OutputDir, f.Name)
	if err := writeFile(path, f.Data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes data next to path and renames it into place.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("schedule: create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("schedule: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("schedule: write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("schedule: close export: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("schedule: rename export: %w", err)
	}
	return nil
}

// Scheduler triggers a Job on a cron expression.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	ctx  context.Context // set by Run, cancels running exports
}

// New parses spec (standard five field cron, or descriptors such as
// @daily) in the job's location.
func New(spec string, job *Job) (*Scheduler, error) {
	loc := job.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{})),
		job:  job,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("schedule: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	path, err := s.job.Run(ctx)
	if err != nil {
		appLog.Error("schedule: export failed", err, "mailbox", s.job.Mailbox)
		return
	}
	appLog.Info("schedule: export written", "path", path)
}

// Run starts the scheduler and blocks until ctx is cancelled. Running
// exports are waited for.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	appLog.Info("schedule: started", "entries", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("schedule: stopped")
}

// cronLogger routes cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
