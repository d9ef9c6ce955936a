package kube

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/chazu/litekube/pkg/config"
	"github.com/chazu/litekube/pkg/retry"
	"github.com/chazu/litekube/pkg/wait"
)

// Scheme holds the built-in Kubernetes types understood by the clients
var Scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(Scheme))
}

// Client bundles the per-kind clients over a single cluster connection
type Client struct {
	Pods        *Pods
	Deployments *Deployments
	DaemonSets  *DaemonSets
	Services    *Services
	Namespaces  *Namespaces
	Secrets     *Secrets
	Nodes       *Nodes

	api *api
}

// New connects to the cluster described by restConfig
func New(restConfig *rest.Config, cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := client.New(restConfig, client.Options{Scheme: Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	cs, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return build(newAPI(c, cs, restConfig, cfg)), nil
}

// NewForClients builds a Client over existing clients. cs may be nil, in
// which case Logs and Exec are unavailable.
func NewForClients(c client.Client, cs kubernetes.Interface, cfg config.Config) *Client {
	return build(newAPI(c, cs, nil, cfg))
}

func build(a *api) *Client {
	pods := &Pods{api: a}
	return &Client{
		Pods:        pods,
		Deployments: &Deployments{api: a, pods: pods},
		DaemonSets:  &DaemonSets{api: a, pods: pods},
		Services:    &Services{api: a},
		Namespaces:  &Namespaces{api: a},
		Secrets:     &Secrets{api: a},
		Nodes:       newNodes(a),
		api:         a,
	}
}

// Config returns the configuration the client was built with
func (c *Client) Config() config.Config {
	return c.api.config
}

// Poller returns the poller used for waits
func (c *Client) Poller() *wait.Poller {
	return c.api.poller
}

// Retrier returns the retrier configured for transient failures
func (c *Client) Retrier() *retry.Retrier {
	return c.api.retrier
}

// Scheme returns the scheme of the underlying client
func (c *Client) Scheme() *runtime.Scheme {
	return c.api.scheme
}

// Controller returns the underlying controller-runtime client
func (c *Client) Controller() client.Client {
	return c.api.client
}
