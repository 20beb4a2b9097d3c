package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/task"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect the task gallery",
	}
	cmd.AddCommand(newTasksListCommand(ctx))
	cmd.AddCommand(newTasksShowCommand(ctx))
	return cmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var (
		sort   sortFlags
		reload bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := sort.options()
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			// An in-memory gallery starts empty, so it always needs a reload.
			if reload || !cmd.Flags().Changed("reload") && !a.persistent() {
				if _, err := a.manager.LoadExisting(cmd.Context(), opts); err != nil {
					return err
				}
			}

			records, err := a.manager.Tasks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTasks(records))
			return nil
		},
	}
	sort.register(cmd)
	cmd.Flags().BoolVar(&reload, "reload", false, "Reload the gallery from the scheduler first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			a, err := ctx.ensureApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			rec, ok, err := a.manager.Task(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				apiTask, err := a.scheduler.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("task %s: %w", id, err)
				}
				rec = task.FromAPI(*apiTask, time.Now())
			}

			if asJSON {
				return writeJSON(cmd, rec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTaskDetail(rec))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the gallery and scheduler state to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Output.ExportDir
			}

			m := a.manager
			if err := m.Connect(cmd.Context(), task.DefaultSort()); err != nil {
				return err
			}
			path, err := m.ExportTo(cmd.Context(), dir)
			if err != nil {
				return err
			}

			size := "?"
			if info, err := os.Stat(path); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, size)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default from config)")
	return cmd
}
