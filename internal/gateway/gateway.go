// Package gateway exposes the assistant over HTTP.
//
// It serves POST /query for one-shot text queries, the same pipeline the
// CLI drives behind a REST endpoint, plus the Swagger UI for the API docs.
// Audio-capable clients transcribe on their side (or use the speech
// package) and post plain text here.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/PatrickKalkman/kubevox/internal/assistant"
)

// Handler processes one query end to end. The assistant provides this to
// the gateway so the HTTP layer stays free of pipeline details.
type Handler func(ctx context.Context, text string) (*assistant.QueryResponse, error)

// QueryRequest is the POST /query body.
type QueryRequest struct {
	// Text is the user's utterance, already in text form.
	Text string `json:"text"`
}

// QueryReply is the POST /query response body.
type QueryReply struct {
	// RequestID identifies this exchange in the logs.
	RequestID string `json:"request_id"`

	assistant.QueryResponse

	// Reply is the aggregated natural-language answer.
	Reply string `json:"reply"`
}

// Server is the HTTP gateway.
type Server struct {
	port    int
	handler Handler
	server  *http.Server
}

// New creates a gateway on the given port.
func New(port int, handler Handler) *Server {
	return &Server{port: port, handler: handler}
}

// ListenAndServe starts the gateway and blocks until the context is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /query", s.handleQuery)

	// Swagger UI for the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway listening", "port", s.port)

	go func() {
		<-ctx.Done()
		slog.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return nil
}

// handleQuery processes a POST /query request.
//
// @Summary     Run a natural-language cluster query
// @Description Accepts a JSON body with a text utterance (or a raw text/plain body), runs it through
// @Description the assistant pipeline (completion, call extraction, dispatch), and returns
// @Description the raw completion, the extracted calls, the per-call results, and the aggregated reply.
// @Tags        query
// @Accept      json
// @Accept      plain
// @Produce     json
// @Param       query  body      QueryRequest  true  "Query (JSON). For plain text, POST the utterance directly with Content-Type: text/plain."
// @Success     200  {object}  QueryReply  "Query results"
// @Failure     400  {string}  string  "Invalid request body"
// @Failure     502  {string}  string  "Completion server failure"
// @Router      /query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	logger := slog.With("request_id", id)

	var text string
	switch r.Header.Get("Content-Type") {
	case "application/json":
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		text = req.Text
	default:
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
			return
		}
		text = string(raw)
	}

	if text == "" {
		http.Error(w, "empty query", http.StatusBadRequest)
		return
	}

	logger.Info("query received", "text_length", len(text))
	resp, err := s.handler(r.Context(), text)
	if err != nil {
		logger.Error("query failed", "error", err)
		http.Error(w, "query error: "+err.Error(), http.StatusBadGateway)
		return
	}

	reply, err := assistant.Aggregate(resp)
	if err != nil {
		if !errors.Is(err, assistant.ErrNoResponse) {
			logger.Error("aggregation failed", "error", err)
		}
		reply = "No response available."
	}

	logger.Info("query complete", "calls", len(resp.Calls))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(QueryReply{
		RequestID:     id,
		QueryResponse: *resp,
		Reply:         reply,
	})
}

// Close gracefully shuts down the gateway.
func (s *Server) Close() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}
