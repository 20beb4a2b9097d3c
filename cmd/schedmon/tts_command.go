package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/tts"
)

func newTTSCommand(ctx *commandContext) *cobra.Command {
	var (
		req      tts.Request
		provider string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "tts [text]",
		Short: "Synthesize speech and save the audio clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Text == "" {
				req.Text = strings.Join(args, " ")
			}
			req.Provider = tts.Provider(strings.ToLower(strings.TrimSpace(provider)))

			a, err := ctx.ensureApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Output.AudioDir
			}

			start := time.Now()
			audio, err := a.ttsClient().Synthesize(cmd.Context(), req)
			if err != nil {
				return err
			}
			path, err := tts.Save(dir, audio, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n",
				path, humanize.Bytes(uint64(len(audio.Data))), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Text, "text", "", "Text to speak")
	cmd.Flags().StringVar(&provider, "provider", string(tts.ProviderDoubao), "Provider: doubao, azure or minimax")
	cmd.Flags().StringVar(&req.VoiceType, "voice", "", "Provider voice identifier")
	cmd.Flags().StringVar(&req.Emotion, "emotion", "", "Emotion, when the provider supports one")
	cmd.Flags().BoolVar(&req.EnableEmotion, "enable-emotion", false, "Send the emotion with the request")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default from config)")
	return cmd
}
