package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/task"
)

func newConnectCommand(ctx *commandContext) *cobra.Command {
	var sort sortFlags

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Check the scheduler and load its existing tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := sort.options()
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			m := a.manager
			if err := m.Connect(cmd.Context(), opts); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSystemInfo(m.SchedulerURL(), m.Connected(), m.SystemInfo()))

			records, err := m.Tasks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				fmt.Fprintln(out, renderTasks(records))
			}
			return nil
		},
	}
	sort.register(cmd)
	return cmd
}

func newSystemCommand(ctx *commandContext) *cobra.Command {
	var watch time.Duration

	cmd := &cobra.Command{
		Use:   "system",
		Short: "Show scheduler workers and queue length",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			m := a.manager
			out := cmd.OutOrStdout()

			if err := m.Connect(cmd.Context(), task.DefaultSort()); err != nil {
				return err
			}
			fmt.Fprintln(out, renderSystemInfo(m.SchedulerURL(), m.Connected(), m.SystemInfo()))
			if watch <= 0 {
				return nil
			}

			ticker := time.NewTicker(watch)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					if err := m.RefreshSystemInfo(cmd.Context()); err == nil {
						fmt.Fprintln(out, renderSystemInfo(m.SchedulerURL(), m.Connected(), m.SystemInfo()))
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "Refresh at this interval until interrupted")
	return cmd
}
