package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PatrickKalkman/kubevox/internal/assistant"
	"github.com/PatrickKalkman/kubevox/internal/speech"
)

func newListenCmd(configFile *string) *cobra.Command {
	var (
		duration   float64
		sampleRate int
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run continuous voice interaction from an audio stream",
		Long: `Read raw audio from stdin, transcribe it utterance by utterance, and run
each transcript through the assistant. Audio capture is external: pipe raw
16-bit little-endian mono PCM into stdin, for example:

  arecord -f S16_LE -r 16000 -c 1 -t raw | kubevox listen

The stream is cut into fixed-duration utterances (--duration seconds). A
bounded queue sits between stdin reading and query processing; utterances
arriving while the queue is full are dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configFile)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if _, err := a.checkHealth(ctx); err != nil {
				return err
			}

			var speaker *speech.Speaker
			if a.cfg.Output.Mode == "voice" {
				speaker = speech.NewSpeaker(a.cfg.Speech.ElevenLabs)
			}

			handle := func(ctx context.Context, text string) {
				resp, err := a.assistant.ProcessQuery(ctx, text)
				if err != nil {
					slog.Error("query failed", "error", err)
					return
				}
				reply, err := assistant.Aggregate(resp)
				if err != nil {
					if errors.Is(err, assistant.ErrNoResponse) {
						slog.Warn("no formatted response", "completion", resp.RawCompletion)
					}
					return
				}
				if speaker != nil {
					if err := speaker.Speak(ctx, reply, os.Stdout); err != nil {
						slog.Error("speaking reply failed", "error", err)
					}
					return
				}
				fmt.Printf("Assistant: %s\n", reply)
			}

			transcriber := speech.NewWhisperTranscriber(a.cfg.Speech)
			session := speech.NewSession(transcriber, handle, a.cfg.Speech.QueueSize)
			session.ContentType = "audio/pcm"

			go session.Run(ctx)

			// 16-bit mono PCM: sampleRate*2 bytes per second of audio.
			chunkBytes := int(float64(sampleRate) * 2 * duration)
			slog.Info("listening", "sample_rate", sampleRate, "utterance_seconds", duration)

			buf := make([]byte, chunkBytes)
			for ctx.Err() == nil {
				n, err := io.ReadFull(os.Stdin, buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					session.Offer(chunk)
				}
				if err != nil {
					if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
						break
					}
					return fmt.Errorf("reading audio: %w", err)
				}
			}

			slog.Info("audio stream ended")
			cancel()
			return nil
		},
	}

	cmd.Flags().Float64Var(&duration, "duration", 4.0, "utterance duration in seconds")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 16000, "input sample rate in Hz")
	return cmd
}
