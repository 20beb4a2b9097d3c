package main

import (
	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/task"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "schedmon",
		Short:         "Submit and monitor media generation jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newConnectCommand(ctx))
	rootCmd.AddCommand(newSystemCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newTasksCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newTTSCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}

type sortFlags struct {
	by    string
	order string
}

func (f *sortFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.by, "sort-by", string(task.SortCreatedAt), "Sort field: created_at, updated_at, started_at, completed_at")
	cmd.Flags().StringVar(&f.order, "sort-order", string(task.SortDesc), "Sort order: asc or desc")
}

func (f *sortFlags) options() (task.SortOptions, error) {
	return task.ParseSortOptions(f.by, f.order)
}
