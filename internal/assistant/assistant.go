// Package assistant drives one query end to end: prompt the llama server,
// extract the calls from its completion, execute them in order, and
// aggregate the formatted responses into a single reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PatrickKalkman/kubevox/internal/call"
	"github.com/PatrickKalkman/kubevox/internal/executor"
	"github.com/PatrickKalkman/kubevox/internal/llama"
)

// ErrNoResponse reports that no executed call produced a formatted response.
var ErrNoResponse = errors.New("no response available")

// QueryResponse is the result of one end-to-end query. It is not persisted:
// no conversation state carries over to the next query.
type QueryResponse struct {
	// RawCompletion is the model's generated text, verbatim.
	RawCompletion string `json:"response"`

	// Calls are the raw call expressions found in the completion, in order
	// of appearance. That order is also the execution order.
	Calls []string `json:"function_calls"`

	// Results holds one entry per call, same order.
	Results []executor.Result `json:"results"`
}

// Assistant wires the completion client and the executor together.
type Assistant struct {
	llama    *llama.Client
	executor *executor.Executor
}

// New creates an assistant from its two collaborators.
func New(client *llama.Client, exec *executor.Executor) *Assistant {
	return &Assistant{llama: client, executor: exec}
}

// ProcessQuery runs one query through the full pipeline. Completion-level
// failures (server unreachable, non-2xx) abort the query and are returned
// as the error; per-call execution failures are captured inside Results and
// do not stop sibling calls.
//
// Calls run strictly sequentially, in order of appearance: operations such
// as switch_cluster change state that later calls in the same turn depend on.
func (a *Assistant) ProcessQuery(ctx context.Context, text string) (*QueryResponse, error) {
	start := time.Now()
	slog.Info("processing query", "text", text)

	completion, err := a.llama.Complete(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generating completion: %w", err)
	}

	rawCalls := call.Extract(completion.Content)
	slog.Info("extracted calls", "count", len(rawCalls), "calls", rawCalls)

	results := make([]executor.Result, 0, len(rawCalls))
	for _, raw := range rawCalls {
		parsed := call.Parse(raw)
		results = append(results, a.executor.Execute(ctx, parsed.Name, parsed.Arguments))
	}

	slog.Info("query complete", "duration", time.Since(start), "calls", len(rawCalls))
	return &QueryResponse{
		RawCompletion: completion.Content,
		Calls:         rawCalls,
		Results:       results,
	}, nil
}

// Aggregate joins the formatted responses of every successful result with
// " and ". Failures and empty responses are skipped; if nothing remains,
// ErrNoResponse is returned instead of an empty string.
func Aggregate(resp *QueryResponse) (string, error) {
	var parts []string
	for _, res := range resp.Results {
		if res.Success && res.Formatted != "" {
			parts = append(parts, res.Formatted)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoResponse
	}
	return strings.Join(parts, " and "), nil
}
