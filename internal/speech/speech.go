// Package speech holds the voice-side collaborators of the assistant: a
// client for a Whisper-compatible transcription server, a client for the
// ElevenLabs text-to-speech API, and the session that hands recorded audio
// from a capture callback to the processing loop.
//
// Audio capture itself (microphone access, push-to-talk) is outside this
// package; whatever captures audio offers finished utterances to a Session.
package speech

import "context"

// Config holds the speech settings.
type Config struct {
	// WhisperEndpoint is the URL of an OpenAI-compatible transcription
	// endpoint (whisper.cpp server, faster-whisper).
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`

	// Language optionally guides transcription (ISO-639-1).
	Language string `mapstructure:"language"`

	// QueueSize bounds the number of recorded utterances waiting to be
	// processed before new ones are dropped.
	QueueSize int `mapstructure:"queue_size"`

	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
}

// ElevenLabsConfig holds the text-to-speech settings.
type ElevenLabsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	VoiceID string `mapstructure:"voice_id"`
	ModelID string `mapstructure:"model_id"`
}

// Transcriber converts one recorded utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}
