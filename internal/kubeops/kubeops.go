// Package kubeops implements the cluster operations the assistant exposes to
// the language model.
//
// Each operation is registered into the catalog with its description,
// parameter schema, and response template; the handlers talk to the cluster
// through client-go. Handlers receive raw string arguments from the call
// extractor and coerce them locally.
package kubeops

import (
	"net/http"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/PatrickKalkman/kubevox/internal/registry"
)

// changelogURL is where the latest stable version lookup reads from.
const changelogURL = "https://raw.githubusercontent.com/kubernetes/kubernetes/master/CHANGELOG/CHANGELOG-1.28.md"

// Client bundles the Kubernetes API access shared by all operations.
type Client struct {
	// kubeconfig is the path to the kubeconfig file; empty means the
	// standard loading rules (KUBECONFIG, then ~/.kube/config).
	kubeconfig string

	// changelog is the URL fetched by the latest-version operation.
	changelog string

	httpClient *http.Client

	mu sync.Mutex
	cs kubernetes.Interface
}

// New creates a client for the cluster selected by kubeconfigPath.
func New(kubeconfigPath string) *Client {
	return &Client{
		kubeconfig: kubeconfigPath,
		changelog:  changelogURL,
		httpClient: &http.Client{},
	}
}

// kubeconfigPath resolves the effective kubeconfig file path.
func (c *Client) kubeconfigPath() string {
	if c.kubeconfig != "" {
		return c.kubeconfig
	}
	return clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
}

// clientset lazily builds the typed clientset from the kubeconfig. The
// clientset is cached; a cluster context switch within the same turn takes
// effect for the next process, matching kubectl semantics.
func (c *Client) clientset() (kubernetes.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cs != nil {
		return c.cs, nil
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", c.kubeconfig)
	if err != nil {
		return nil, err
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	c.cs = cs
	return c.cs, nil
}

// Register adds every cluster operation to the catalog. Call once at
// startup, before the catalog is shared.
func (c *Client) Register(cat *registry.Catalog) {
	cat.Register(registry.Operation{
		Name:             "get_number_of_nodes",
		Description:      "Get the number of nodes in the Kubernetes cluster.",
		ResponseTemplate: "The cluster has {node_count} nodes.",
		Handler:          c.getNumberOfNodes,
	})
	cat.Register(registry.Operation{
		Name:             "get_number_of_pods",
		Description:      "Get the number of pods in the Kubernetes cluster, optionally filtered by namespace.",
		ResponseTemplate: "There are {pod_count} pods running{namespace_info}.",
		Parameters: &registry.ParameterSchema{
			Properties: map[string]registry.Property{
				"namespace": {
					Type:        "string",
					Description: "Namespace to filter pods (optional - if not provided, counts pods across all namespaces)",
				},
			},
		},
		Handler: c.getNumberOfPods,
	})
	cat.Register(registry.Operation{
		Name:             "get_number_of_namespaces",
		Description:      "Get the number of namespaces in the Kubernetes cluster.",
		ResponseTemplate: "The cluster contains {namespace_count} namespaces.",
		Handler:          c.getNumberOfNamespaces,
	})
	cat.Register(registry.Operation{
		Name:             "analyze_deployment_logs",
		Description:      "Analyze logs from all pods in a deployment for criticals/errors/warnings in the last hour.",
		ResponseTemplate: "Analysis complete for deployment '{deployment_name}' in namespace '{namespace}'.",
		Parameters: &registry.ParameterSchema{
			Required: []string{"deployment_name"},
			Properties: map[string]registry.Property{
				"deployment_name": {
					Type:        "string",
					Description: "Name of the deployment to analyze.",
				},
				"namespace": {
					Type:        "string",
					Description: "Namespace of the deployment (default: 'default').",
					Default:     "default",
				},
			},
		},
		Handler: c.analyzeDeploymentLogs,
	})
	cat.Register(registry.Operation{
		Name:             "get_version_info",
		Description:      "Get version information for both Kubernetes API server and nodes.",
		ResponseTemplate: "API server version is {api_version}. Node versions: {node_versions}.",
		Handler:          c.getVersionInfo,
	})
	cat.Register(registry.Operation{
		Name:             "get_kubernetes_latest_version_information",
		Description:      "Retrieve the latest stable version information from the Kubernetes GitHub repository.",
		ResponseTemplate: "Latest Kubernetes stable version is {latest_stable_version}.",
		Handler:          c.getLatestVersionInformation,
	})
	cat.Register(registry.Operation{
		Name:             "get_available_clusters",
		Description:      "Get a list of all available Kubernetes clusters from the kubeconfig.",
		ResponseTemplate: "Found {total_clusters} clusters. Active cluster is '{active_cluster[name]}'.",
		Handler:          c.getAvailableClusters,
	})
	cat.Register(registry.Operation{
		Name:             "switch_cluster",
		Description:      "Switch to a different Kubernetes cluster context and persist the change.",
		ResponseTemplate: "Switched to cluster '{cluster_name}'.",
		Parameters: &registry.ParameterSchema{
			Required: []string{"cluster_name"},
			Properties: map[string]registry.Property{
				"cluster_name": {
					Type:        "string",
					Description: "Name of the cluster to switch to.",
				},
			},
		},
		Handler: c.switchCluster,
	})
	cat.Register(registry.Operation{
		Name:             "get_cluster_name",
		Description:      "Get the name of the current Kubernetes cluster.",
		ResponseTemplate: "Current cluster is '{cluster_name}'.",
		Handler:          c.getClusterName,
	})
	cat.Register(registry.Operation{
		Name:             "get_last_events",
		Description:      "Retrieve the messages of the last four events in the cluster.",
		ResponseTemplate: "Retrieved the last {count} events from the cluster.",
		Handler:          c.getLastEvents,
	})
	cat.Register(registry.Operation{
		Name:             "get_cluster_status",
		Description:      "Get detailed status information about the Kubernetes cluster.",
		ResponseTemplate: "Cluster status retrieved. Summary: {status_summary}.",
		Handler:          c.getClusterStatus,
	})
}
