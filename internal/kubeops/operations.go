package kubeops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func (c *Client) getNumberOfNodes(ctx context.Context, _ map[string]string) (map[string]any, error) {
	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}
	nodes, err := cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return map[string]any{"node_count": len(nodes.Items)}, nil
}

func (c *Client) getNumberOfPods(ctx context.Context, args map[string]string) (map[string]any, error) {
	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}

	namespace := args["namespace"]
	pods, err := cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}

	namespaceInfo := " across all namespaces"
	if namespace != "" {
		namespaceInfo = fmt.Sprintf(" in namespace '%s'", namespace)
	}
	return map[string]any{
		"pod_count":      len(pods.Items),
		"namespace_info": namespaceInfo,
	}, nil
}

func (c *Client) getNumberOfNamespaces(ctx context.Context, _ map[string]string) (map[string]any, error) {
	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}
	namespaces, err := cs.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	return map[string]any{"namespace_count": len(namespaces.Items)}, nil
}

func (c *Client) analyzeDeploymentLogs(ctx context.Context, args map[string]string) (map[string]any, error) {
	deployment := args["deployment_name"]
	if deployment == "" {
		return nil, fmt.Errorf("missing required parameter deployment_name")
	}
	namespace := args["namespace"]
	if namespace == "" {
		namespace = "default"
	}

	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}

	pods, err := cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + deployment,
	})
	if err != nil {
		return nil, fmt.Errorf("listing deployment pods: %w", err)
	}

	sinceSeconds := int64(3600)
	counts := map[string]any{"CRITICAL": 0, "ERROR": 0, "WARNING": 0}
	for _, pod := range pods.Items {
		req := cs.CoreV1().Pods(namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
			SinceSeconds: &sinceSeconds,
		})
		stream, err := req.Stream(ctx)
		if err != nil {
			slog.Warn("reading pod logs failed", "pod", pod.Name, "error", err)
			continue
		}
		logs, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			slog.Warn("reading pod logs failed", "pod", pod.Name, "error", err)
			continue
		}

		text := string(logs)
		for _, level := range []string{"CRITICAL", "ERROR", "WARNING"} {
			counts[level] = counts[level].(int) + strings.Count(text, level)
		}
	}

	return map[string]any{
		"deployment_name": deployment,
		"namespace":       namespace,
		"log_counts":      counts,
	}, nil
}

func (c *Client) getVersionInfo(ctx context.Context, _ map[string]string) (map[string]any, error) {
	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}

	version, err := cs.Discovery().ServerVersion()
	if err != nil {
		return nil, fmt.Errorf("reading server version: %w", err)
	}

	nodes, err := cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	nodeVersions := make([]string, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		nodeVersions = append(nodeVersions, node.Status.NodeInfo.KubeletVersion)
	}

	return map[string]any{
		"api_version":   version.GitVersion,
		"node_versions": nodeVersions,
	}, nil
}

// stableVersionPattern matches release headings like "# v1.28.15".
var stableVersionPattern = regexp.MustCompile(`# v1\.28\.(\d+)`)

func (c *Client) getLatestVersionInformation(ctx context.Context, _ map[string]string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.changelog, nil)
	if err != nil {
		return nil, fmt.Errorf("creating changelog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching changelog: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading changelog: %w", err)
	}

	latest := "Unknown"
	if match := stableVersionPattern.FindSubmatch(content); match != nil {
		latest = "1.28." + string(match[1])
	}
	return map[string]any{"latest_stable_version": latest}, nil
}

func (c *Client) getLastEvents(ctx context.Context, args map[string]string) (map[string]any, error) {
	count := 4
	if raw, ok := args["count"]; ok && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", raw, err)
		}
		count = parsed
	}

	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}
	events, err := cs.CoreV1().Events(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		Limit: int64(count),
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	list := make([]any, 0, len(events.Items))
	for _, event := range events.Items {
		list = append(list, map[string]any{
			"type":      event.Type,
			"reason":    event.Reason,
			"message":   event.Message,
			"timestamp": event.LastTimestamp.Time,
		})
	}
	return map[string]any{"events": list, "count": len(list)}, nil
}

func (c *Client) getClusterStatus(ctx context.Context, _ map[string]string) (map[string]any, error) {
	cs, err := c.clientset()
	if err != nil {
		return nil, err
	}

	nodes, err := cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	nodeStatus := map[string]any{}
	readyNodes := 0
	for _, node := range nodes.Items {
		for _, cond := range node.Status.Conditions {
			if cond.Type == corev1.NodeReady {
				key := string(cond.Status)
				current, _ := nodeStatus[key].(int)
				nodeStatus[key] = current + 1
				if cond.Status == corev1.ConditionTrue {
					readyNodes++
				}
			}
		}
	}

	pods, err := cs.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	podStatus := map[string]any{}
	runningPods := 0
	for _, pod := range pods.Items {
		key := string(pod.Status.Phase)
		current, _ := podStatus[key].(int)
		podStatus[key] = current + 1
		if pod.Status.Phase == corev1.PodRunning {
			runningPods++
		}
	}

	summary := fmt.Sprintf("%d nodes (%d ready), %d pods (%d running)",
		len(nodes.Items), readyNodes, len(pods.Items), runningPods)

	return map[string]any{
		"node_status":    nodeStatus,
		"pod_status":     podStatus,
		"status_summary": summary,
	}, nil
}
