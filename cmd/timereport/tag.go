package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"timereport/internal/host"
	"timereport/internal/report"
	"timereport/internal/submit"
)

type tagFlags struct {
	body     string
	hostName string
	item     string
	record   report.Record
	included bool
}

func newTagCmd(flags *rootFlags) *cobra.Command {
	var f tagFlags
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add or replace the time reporting marker of a local HTML event body",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			f.record.Included = fmt.Sprint(f.included)
			if f.item == "" {
				f.item = filepath.Base(f.body)
			}

			out := submit.New(f.item, f.record, submit.Deps{
				Body:           host.FileBody{Path: f.body},
				Identity:       host.StaticIdentity(f.hostName),
				Dialogs:        &host.TerminalDialogs{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()},
				Guard:          host.Guard{Timeout: conf.HostTimeout},
				ConfirmTimeout: conf.ConfirmTimeout,
			}).Run(ctx)

			fmt.Fprintf(cmd.ErrOrStderr(), "state: %s\n", out.State)
			return out.Err
		},
	}
	cmd.Flags().StringVar(&f.body, "body", "", "HTML file holding the event body")
	cmd.Flags().StringVar(&f.hostName, "host", "Outlook", "Host name reported by the mail client (Outlook, OutlookWebApp, newOutlookWindows)")
	cmd.Flags().StringVar(&f.item, "item", "", "Item identifier used in logs (defaults to the file name)")
	cmd.Flags().StringVar(&f.record.Project, "project", "", "Project")
	cmd.Flags().StringVar(&f.record.ProjectCode, "project-code", "", "Project code")
	cmd.Flags().StringVar(&f.record.ServiceType, "service-type", report.DefaultServiceType, "Service type")
	cmd.Flags().BoolVar(&f.included, "included", false, "Mark the time as included")
	_ = cmd.MarkFlagRequired("body")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("project-code")
	return cmd
}
