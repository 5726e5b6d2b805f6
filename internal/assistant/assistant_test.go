package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/PatrickKalkman/kubevox/internal/executor"
	"github.com/PatrickKalkman/kubevox/internal/llama"
	"github.com/PatrickKalkman/kubevox/internal/registry"
)

// newTestAssistant builds an assistant whose llama server always completes
// with the given content.
func newTestAssistant(t *testing.T, cat *registry.Catalog, content string) *Assistant {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(llama.Completion{Content: content, Stop: true})
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	cfg := llama.DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = port

	return New(llama.New(cfg, cat), executor.New(cat))
}

func TestProcessQuerySingleCall(t *testing.T) {
	dispatched := 0
	cat := registry.NewCatalog()
	cat.Register(registry.Operation{
		Name:             "get_number_of_nodes",
		ResponseTemplate: "The cluster has {node_count} nodes.",
		Handler: func(_ context.Context, _ map[string]string) (map[string]any, error) {
			dispatched++
			return map[string]any{"node_count": 3}, nil
		},
	})

	a := newTestAssistant(t, cat, "get_number_of_nodes()")
	resp, err := a.ProcessQuery(context.Background(), "how many nodes?")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if dispatched != 1 {
		t.Errorf("expected exactly one dispatch, got %d", dispatched)
	}
	if len(resp.Calls) != 1 || resp.Calls[0] != "get_number_of_nodes()" {
		t.Errorf("unexpected calls %v", resp.Calls)
	}

	reply, err := Aggregate(resp)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if reply != "The cluster has 3 nodes." {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestProcessQueryTwoCallsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	handler := func(name string, result map[string]any) registry.Handler {
		return func(_ context.Context, _ map[string]string) (map[string]any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return result, nil
		}
	}

	cat := registry.NewCatalog()
	cat.Register(registry.Operation{
		Name:             "switch_cluster",
		ResponseTemplate: "Switched to cluster '{cluster_name}'.",
		Handler:          handler("switch_cluster", map[string]any{"cluster_name": "prod"}),
	})
	cat.Register(registry.Operation{
		Name:             "get_cluster_name",
		ResponseTemplate: "Current cluster is '{cluster_name}'.",
		Handler:          handler("get_cluster_name", map[string]any{"cluster_name": "prod"}),
	})

	a := newTestAssistant(t, cat,
		"[switch_cluster(cluster_name='prod'), get_cluster_name()]")
	resp, err := a.ProcessQuery(context.Background(), "switch to prod and confirm")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	wantOrder := []string{"switch_cluster", "get_cluster_name"}
	for i, name := range wantOrder {
		if order[i] != name {
			t.Fatalf("execution order %v, want %v", order, wantOrder)
		}
	}

	reply, err := Aggregate(resp)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := "Switched to cluster 'prod'. and Current cluster is 'prod'."
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
}

func TestProcessQueryFailureDoesNotAbortSiblings(t *testing.T) {
	cat := registry.NewCatalog()
	cat.Register(registry.Operation{
		Name: "broken",
		Handler: func(_ context.Context, _ map[string]string) (map[string]any, error) {
			return nil, fmt.Errorf("kubeconfig unreadable")
		},
	})
	cat.Register(registry.Operation{
		Name:             "get_number_of_namespaces",
		ResponseTemplate: "The cluster contains {namespace_count} namespaces.",
		Handler: func(_ context.Context, _ map[string]string) (map[string]any, error) {
			return map[string]any{"namespace_count": 7}, nil
		},
	})

	a := newTestAssistant(t, cat, "broken(), get_number_of_namespaces()")
	resp, err := a.ProcessQuery(context.Background(), "status please")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Success {
		t.Error("first result should be a failure")
	}
	if !resp.Results[1].Success {
		t.Errorf("second result should succeed, got %q", resp.Results[1].Err)
	}

	reply, err := Aggregate(resp)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if reply != "The cluster contains 7 namespaces." {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestProcessQueryUnknownOperation(t *testing.T) {
	a := newTestAssistant(t, registry.NewCatalog(), "reboot_the_world()")
	resp, err := a.ProcessQuery(context.Background(), "do something")
	if err != nil {
		t.Fatalf("unknown operations must not abort the query: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Success {
		t.Fatalf("expected one failure result, got %+v", resp.Results)
	}
	if resp.Results[0].Err != "Function reboot_the_world not found" {
		t.Errorf("unexpected error %q", resp.Results[0].Err)
	}
}

func TestProcessQueryNoCalls(t *testing.T) {
	a := newTestAssistant(t, registry.NewCatalog(), "I cannot help with that.")
	resp, err := a.ProcessQuery(context.Background(), "tell me a joke")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if len(resp.Calls) != 0 || len(resp.Results) != 0 {
		t.Errorf("expected no calls, got %v", resp.Calls)
	}
	if _, err := Aggregate(resp); !errors.Is(err, ErrNoResponse) {
		t.Errorf("expected ErrNoResponse, got %v", err)
	}
}

func TestProcessQueryServerErrorAborts(t *testing.T) {
	cat := registry.NewCatalog()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	cfg := llama.DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = port
	a := New(llama.New(cfg, cat), executor.New(cat))

	if _, err := a.ProcessQuery(context.Background(), "anything"); err == nil {
		t.Fatal("completion server failure must abort the query")
	}
}

func TestAggregateSkipsEmptyFormatted(t *testing.T) {
	resp := &QueryResponse{
		Results: []executor.Result{
			{Success: true, Formatted: ""},
			{Success: true, Formatted: "Current cluster is 'prod'."},
		},
	}
	reply, err := Aggregate(resp)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if reply != "Current cluster is 'prod'." {
		t.Errorf("unexpected reply %q", reply)
	}
}
