package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PatrickKalkman/kubevox/internal/assistant"
	"github.com/PatrickKalkman/kubevox/internal/speech"
)

func newAskCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run a single text query against the cluster",
		Long: `Run a single natural-language query through the assistant pipeline and
print the reply. With output mode "voice" the reply is synthesized through
ElevenLabs and the audio is streamed to stdout, so it can be piped into an
audio player:

  kubevox ask --config kubevox.yaml "how many nodes are there?" | mpv -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if _, err := a.checkHealth(ctx); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			resp, err := a.assistant.ProcessQuery(ctx, query)
			if err != nil {
				return err
			}

			reply, err := assistant.Aggregate(resp)
			if err != nil {
				if errors.Is(err, assistant.ErrNoResponse) {
					slog.Warn("no formatted response for query", "completion", resp.RawCompletion)
					reply = "No response available."
				} else {
					return err
				}
			}

			if a.cfg.Output.Mode == "voice" {
				speaker := speech.NewSpeaker(a.cfg.Speech.ElevenLabs)
				if err := speaker.Speak(ctx, reply, os.Stdout); err != nil {
					return fmt.Errorf("speaking reply: %w", err)
				}
				return nil
			}

			fmt.Printf("Assistant: %s\n", reply)
			return nil
		},
	}
	return cmd
}
