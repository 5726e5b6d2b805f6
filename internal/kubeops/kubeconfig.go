package kubeops

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/client-go/tools/clientcmd"
)

// Operations in this file work on the kubeconfig file itself rather than on
// a live cluster: listing configured clusters, reading the active context,
// and switching it. A context switch is persisted by rewriting the
// kubeconfig, which is what `kubectl config use-context` does.

func (c *Client) getAvailableClusters(_ context.Context, _ map[string]string) (map[string]any, error) {
	cfg, err := clientcmd.LoadFromFile(c.kubeconfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}

	names := make([]string, 0, len(cfg.Clusters))
	for name := range cfg.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	clusters := make([]any, 0, len(names))
	var active map[string]any
	for _, name := range names {
		info := map[string]any{
			"name":      name,
			"server":    cfg.Clusters[name].Server,
			"is_active": name == cfg.CurrentContext,
		}
		clusters = append(clusters, info)
		if name == cfg.CurrentContext {
			active = info
		}
	}

	return map[string]any{
		"clusters":       clusters,
		"total_clusters": len(clusters),
		"active_cluster": active,
	}, nil
}

func (c *Client) switchCluster(_ context.Context, args map[string]string) (map[string]any, error) {
	clusterName := args["cluster_name"]
	if clusterName == "" {
		return nil, fmt.Errorf("missing required parameter cluster_name")
	}

	path := c.kubeconfigPath()
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}

	if _, ok := cfg.Contexts[clusterName]; !ok {
		return map[string]any{
			"cluster_name": clusterName,
			"success":      false,
			"error":        "Failed to switch context",
		}, nil
	}

	cfg.CurrentContext = clusterName
	if err := clientcmd.WriteToFile(*cfg, path); err != nil {
		return map[string]any{
			"cluster_name": clusterName,
			"success":      false,
			"error":        err.Error(),
		}, nil
	}

	// Drop the cached clientset so the next operation talks to the newly
	// selected cluster.
	c.mu.Lock()
	c.cs = nil
	c.mu.Unlock()

	return map[string]any{
		"cluster_name": clusterName,
		"success":      true,
		"error":        nil,
	}, nil
}

func (c *Client) getClusterName(_ context.Context, _ map[string]string) (map[string]any, error) {
	cfg, err := clientcmd.LoadFromFile(c.kubeconfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	return map[string]any{"cluster_name": cfg.CurrentContext}, nil
}
