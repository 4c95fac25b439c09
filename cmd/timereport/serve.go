package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"timereport/internal/calendar"
	"timereport/internal/config"
	"timereport/internal/host"
	"timereport/internal/journal"
	appLog "timereport/internal/log"
	"timereport/internal/metrics"
	"timereport/internal/options"
	"timereport/internal/schedule"
	"timereport/internal/web"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the add-in task pane, its API and scheduled exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// --listen overrides the config file if provided.
			if listen != "" {
				conf.Listen = listen
			}
			return serve(cmd, conf)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(cmd *cobra.Command, conf *config.Config) error {
	appLog.Info("timereport starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"files_dir", conf.FilesDir,
		"provider", conf.Calendar.Provider,
		"ics_count", len(conf.Calendar.ICS),
		"export_format", conf.Export.Format,
		"schedule", conf.Export.Schedule,
		"journal", conf.Journal.Backend,
	)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	jr, err := openJournal(conf)
	if err != nil {
		appLog.Error("failed to open journal", err, "backend", conf.Journal.Backend)
		return err
	}
	defer jr.Close()

	m := metrics.New()
	sources := calendar.NewFactory(conf, nil)

	watcher := options.NewWatcher(conf.FilesDir, func(o options.Options) {
		m.Options("projects", len(o.Projects))
		m.Options("services", len(o.Services))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			appLog.Error("options watcher stopped", err, "dir", conf.FilesDir)
		}
	}()

	if conf.Export.Schedule != "" {
		job := schedule.NewJob(conf, sources, host.Guard{Timeout: conf.HostTimeout, Observer: m})
		job.Recorder = m
		sched, err := schedule.New(conf.Export.Schedule, job)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}

	srv := web.NewServer(ctx, conf, web.Deps{
		Options: watcher,
		Sources: sources,
		Journal: jr,
		Metrics: m,
	})
	err = srv.Serve(ctx)
	cancel()
	wg.Wait()

	if err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		return err
	}
	appLog.Info("timereport exiting")
	return nil
}

func openJournal(conf *config.Config) (journal.Journal, error) {
	switch conf.Journal.Backend {
	case "", "memory":
		return journal.NewMemory(conf.Journal.MaxEntries), nil
	case "redis":
		return journal.NewRedis(conf.Journal.RedisURL, conf.Journal.Key, conf.Journal.MaxEntries)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", conf.Journal.Backend)
	}
}
