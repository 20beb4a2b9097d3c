package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/manager"
	"github.com/podushkina/schedmon/internal/poller"
	"github.com/podushkina/schedmon/internal/submit"
	"github.com/podushkina/schedmon/internal/task"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a generation job",
	}
	cmd.PersistentFlags().BoolVar(&detach, "detach", false, "Return after submission instead of waiting for a terminal state")

	run := func(cmd *cobra.Command, kind string, in submit.Input) error {
		return runSubmit(cmd, ctx, kind, in, detach)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate an image from a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, submit.KindImage, submit.Input{Prompt: strings.Join(args, " ")})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "t2v <prompt>",
		Short: "Generate a video from a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, submit.KindT2V, submit.Input{Prompt: strings.Join(args, " ")})
		},
	})

	var in submit.Input

	video := &cobra.Command{
		Use:   "video",
		Short: "Run the video workflow on media already stored by the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, submit.KindVideoWorkflow, submit.Input{ImageName: in.ImageName, VideoName: in.VideoName})
		},
	}
	video.Flags().StringVar(&in.ImageName, "image-name", "", "Stored reference image name")
	video.Flags().StringVar(&in.VideoName, "video-name", "", "Stored driving video name")
	cmd.AddCommand(video)

	i2v := &cobra.Command{
		Use:   "i2v",
		Short: "Animate an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, submit.KindI2V, submit.Input{ImagePath: in.ImagePath})
		},
	}
	i2v.Flags().StringVar(&in.ImagePath, "image", "", "Image file to upload")
	cmd.AddCommand(i2v)

	vace := &cobra.Command{
		Use:   "vace",
		Short: "Drive an image with a control video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, submit.KindVace, submit.Input{ImagePath: in.ImagePath, VideoPath: in.VideoPath})
		},
	}
	vace.Flags().StringVar(&in.ImagePath, "image", "", "Image file to upload")
	vace.Flags().StringVar(&in.VideoPath, "video", "", "Control video file to upload")
	cmd.AddCommand(vace)

	talk := &cobra.Command{
		Use:   "talk",
		Short: "Make a portrait speak an audio clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, submit.KindTalk, submit.Input{ImagePath: in.ImagePath, AudioPath: in.AudioPath})
		},
	}
	talk.Flags().StringVar(&in.ImagePath, "image", "", "Portrait image file to upload")
	talk.Flags().StringVar(&in.AudioPath, "audio", "", "Audio file to upload")
	cmd.AddCommand(talk)

	return cmd
}

func runSubmit(cmd *cobra.Command, ctx *commandContext, kind string, in submit.Input, detach bool) error {
	a, err := ctx.ensureApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	res, h, err := a.manager.Submit(cmd.Context(), kind, in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Submitted %s: %s\n", res.ID, res.Label)
	if detach {
		h.Cancel()
		return nil
	}

	outcome, err := waitFor(cmd.Context(), h)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderTaskDetail(outcome.Record))
	if outcome.Record.Status.Failed() {
		return fmt.Errorf("task %s ended %s", outcome.Record.ID, outcome.Record.Status)
	}
	return nil
}

// waitFor blocks until the monitor ends or ctx is canceled, in which case
// the monitor is stopped too.
func waitFor(ctx context.Context, h *poller.Handle) (poller.Outcome, error) {
	select {
	case <-h.Done():
		return h.Wait(), nil
	case <-ctx.Done():
		h.Cancel()
		h.Wait()
		return poller.Outcome{}, ctx.Err()
	}
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		opts   manager.BatchOptions
		detach bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Submit several image jobs for load testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			res, err := a.manager.RunBatch(cmd.Context(), opts, func(line string) {
				fmt.Fprintln(out, line)
			})
			if err != nil {
				return err
			}
			if detach || len(res.Handles) == 0 {
				return nil
			}

			start := time.Now()
			for _, h := range res.Handles {
				if _, err := waitFor(cmd.Context(), h); err != nil {
					return err
				}
			}

			records, err := a.manager.Tasks(cmd.Context(), task.DefaultSort())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderTasks(records))
			fmt.Fprintf(out, "Batch finished in %s\n", time.Since(start).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 5, "Number of jobs to submit")
	cmd.Flags().BoolVar(&opts.Random, "random", true, "Use a random sample prompt for each job")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "Prompt to use when --random=false")
	cmd.Flags().DurationVar(&opts.Spacing, "spacing", 0, "Pause between submissions")
	cmd.Flags().BoolVar(&detach, "detach", false, "Return after submission instead of waiting")
	return cmd
}
