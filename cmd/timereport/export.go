package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"timereport/internal/calendar"
	"timereport/internal/export"
	"timereport/internal/host"
	appLog "timereport/internal/log"
	"timereport/internal/outlook"
)

type exportFlags struct {
	from, to string
	token    string
	mailbox  string
	format   string
	encoding string
	out      string
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the calendar events of a date range to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if f.token == "" {
				f.token = conf.Export.Token
			}
			if f.mailbox == "" && f.token != "" {
				if m, err := outlook.MailboxFromToken(f.token); err == nil {
					f.mailbox = m
				}
			}
			if f.mailbox == "" {
				f.mailbox = conf.Export.Mailbox
			}
			if f.format == "" {
				f.format = conf.Export.Format
			}
			if f.encoding == "" {
				f.encoding = conf.Export.Encoding
			}
			if f.out == "" {
				f.out = conf.Export.OutputDir
			}

			wr, err := export.NewWriter(f.format, f.encoding)
			if err != nil {
				return err
			}
			src, err := calendar.NewFactory(conf, nil)(f.token, f.mailbox)
			if err != nil {
				return err
			}
			loc, err := conf.Location()
			if err != nil {
				loc = time.Local
			}

			c := &export.Collector{
				Source:   src,
				Mailbox:  host.StaticMailbox(f.mailbox),
				Guard:    host.Guard{Timeout: conf.HostTimeout},
				Location: loc,
				Writer:   wr,
			}
			file, err := c.Collect(ctx, f.from, f.to)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(f.out, 0o755); err != nil {
				return err
			}
			path := filepath.Join(f.out, file.Name)
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				return err
			}
			appLog.Info("export written", "path", path, "events", file.Events, "truncated", file.Truncated)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.from, "from", "", "First day, yyyy-mm-dd")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day, yyyy-mm-dd")
	cmd.Flags().StringVar(&f.token, "token", "", "Bearer token for the outlook provider (defaults to TIMEREPORT_EXPORT_TOKEN)")
	cmd.Flags().StringVar(&f.mailbox, "mailbox", "", "Mailbox to export (defaults to the token claims, then export.mailbox)")
	cmd.Flags().StringVar(&f.format, "format", "", "csv or xlsx (defaults to export.format)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "utf-8 or windows-1252 for csv (defaults to export.encoding)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory (defaults to export.output_dir)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
