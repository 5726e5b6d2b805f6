package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
	err   error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls
	s.calls++
	if idx < len(s.texts) {
		return s.texts[idx], nil
	}
	return "", nil
}

func TestSessionProcessesUtterances(t *testing.T) {
	tr := &stubTranscriber{texts: []string{"how many nodes", "cluster status"}}
	handled := make(chan string, 4)
	session := NewSession(tr, func(_ context.Context, text string) {
		handled <- text
	}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	// Wait for Run to flip the running flag before offering.
	for !session.Running() {
		time.Sleep(time.Millisecond)
	}

	if !session.Offer([]byte("utterance-1")) {
		t.Fatal("Offer rejected while running with a free queue")
	}
	if !session.Offer([]byte("utterance-2")) {
		t.Fatal("Offer rejected while running with a free queue")
	}

	for _, want := range []string{"how many nodes", "cluster status"} {
		select {
		case got := <-handled:
			if got != want {
				t.Errorf("handled %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handler")
		}
	}
}

func TestSessionOfferNotRunning(t *testing.T) {
	session := NewSession(&stubTranscriber{}, func(context.Context, string) {}, 2)
	if session.Offer([]byte("audio")) {
		t.Error("Offer must fail before Run starts")
	}
}

func TestSessionOfferRejectsEmptyAudio(t *testing.T) {
	session := NewSession(&stubTranscriber{}, func(context.Context, string) {}, 2)
	session.running.Store(true)
	if session.Offer(nil) {
		t.Error("Offer must reject empty audio")
	}
}

func TestSessionDropsWhenQueueFull(t *testing.T) {
	session := NewSession(&stubTranscriber{}, func(context.Context, string) {}, 1)
	session.running.Store(true)

	if !session.Offer([]byte("first")) {
		t.Fatal("first offer should fit in the queue")
	}
	// Nothing drains the queue, so the second offer must be dropped.
	if session.Offer([]byte("second")) {
		t.Error("second offer should be dropped on a full queue")
	}
}

func TestSessionSkipsBlankTranscriptions(t *testing.T) {
	tr := &stubTranscriber{texts: []string{"   ", "real text"}}
	handled := make(chan string, 2)
	session := NewSession(tr, func(_ context.Context, text string) {
		handled <- text
	}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)
	for !session.Running() {
		time.Sleep(time.Millisecond)
	}

	session.Offer([]byte("blank"))
	session.Offer([]byte("spoken"))

	select {
	case got := <-handled:
		if got != "real text" {
			t.Errorf("handled %q, want %q", got, "real text")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
	select {
	case got := <-handled:
		t.Errorf("blank transcription reached the handler: %q", got)
	default:
	}
}

func TestSessionContinuesAfterTranscriptionError(t *testing.T) {
	tr := &stubTranscriber{err: fmt.Errorf("whisper offline")}
	session := NewSession(tr, func(context.Context, string) {
		t.Error("handler must not run on transcription failure")
	}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)
	for !session.Running() {
		time.Sleep(time.Millisecond)
	}

	session.Offer([]byte("audio"))
	time.Sleep(50 * time.Millisecond)
	if !session.Running() {
		t.Error("session must keep running after a transcription failure")
	}
}

func TestWhisperTranscriber(t *testing.T) {
	var gotFile []byte
	var gotFilename, gotLanguage, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)
		gotFilename = header.Filename
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		json.NewEncoder(w).Encode(map[string]string{"text": "show cluster status"})
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(Config{WhisperEndpoint: srv.URL, Language: "en"})
	text, err := tr.Transcribe(context.Background(), []byte("pcm-bytes"), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "show cluster status" {
		t.Errorf("text = %q", text)
	}
	if !bytes.Equal(gotFile, []byte("pcm-bytes")) {
		t.Errorf("uploaded audio = %q", gotFile)
	}
	if gotFilename != "audio.wav" {
		t.Errorf("filename = %q", gotFilename)
	}
	if gotLanguage != "en" {
		t.Errorf("language = %q", gotLanguage)
	}
	if gotFormat != "json" {
		t.Errorf("response_format = %q", gotFormat)
	}
}

func TestWhisperTranscriberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(Config{WhisperEndpoint: srv.URL})
	if _, err := tr.Transcribe(context.Background(), []byte("audio"), "audio/wav"); err == nil {
		t.Fatal("expected error on 503")
	} else if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestExtFromContentType(t *testing.T) {
	cases := map[string]string{
		"audio/ogg":  ".ogg",
		"audio/mpeg": ".mp3",
		"audio/mp3":  ".mp3",
		"audio/flac": ".flac",
		"audio/webm": ".webm",
		"audio/wav":  ".wav",
		"audio/pcm":  ".wav",
	}
	for ct, want := range cases {
		if got := extFromContentType(ct); got != want {
			t.Errorf("extFromContentType(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestSpeakerStreamsAudio(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("mp3-audio-bytes"))
	}))
	defer srv.Close()

	speaker := NewSpeaker(ElevenLabsConfig{APIKey: "secret", VoiceID: "voice-1", ModelID: "model-1"})
	speaker.baseURL = srv.URL

	var out bytes.Buffer
	if err := speaker.Speak(context.Background(), "The cluster has 3 nodes.", &out); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if gotPath != "/v1/text-to-speech/voice-1/stream" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key = %q", gotKey)
	}
	if gotBody["text"] != "The cluster has 3 nodes." || gotBody["model_id"] != "model-1" {
		t.Errorf("request body = %v", gotBody)
	}
	if out.String() != "mp3-audio-bytes" {
		t.Errorf("audio = %q", out.String())
	}
}

func TestSpeakerDefaults(t *testing.T) {
	speaker := NewSpeaker(ElevenLabsConfig{APIKey: "secret"})
	if speaker.voiceID != defaultVoiceID {
		t.Errorf("voiceID = %q", speaker.voiceID)
	}
	if speaker.modelID != defaultModelID {
		t.Errorf("modelID = %q", speaker.modelID)
	}
}

func TestSpeakerEmptyText(t *testing.T) {
	speaker := NewSpeaker(ElevenLabsConfig{})
	if err := speaker.Speak(context.Background(), "", io.Discard); err == nil {
		t.Fatal("expected error for empty text")
	}
}
