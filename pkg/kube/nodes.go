package kube

import (
	"context"
	"strings"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/retry"
)

// Nodes reads and labels nodes and runs commands on them over SSH
type Nodes struct {
	*api

	// sshRetrier retries SSH connection failures; see Execute
	sshRetrier *retry.Retrier
}

func newNodes(a *api) *Nodes {
	cfg := a.config.Retry
	cfg.Transient = kubeerr.Unknown
	return &Nodes{api: a, sshRetrier: retry.New(cfg)}
}

// Get returns the node
func (n *Nodes) Get(ctx context.Context, name string) (*corev1.Node, error) {
	node := &corev1.Node{}
	if err := n.get(ctx, "node", "", name, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Address returns the first address of the given type, or an empty string
func (n *Nodes) Address(ctx context.Context, name string, addressType corev1.NodeAddressType) (string, error) {
	node, err := n.Get(ctx, name)
	if err != nil {
		return "", err
	}
	address, _ := lo.Find(node.Status.Addresses, func(a corev1.NodeAddress) bool {
		return a.Type == addressType
	})
	return address.Address, nil
}

// InternalIP returns the internal IP of the node
func (n *Nodes) InternalIP(ctx context.Context, name string) (string, error) {
	return n.Address(ctx, name, corev1.NodeInternalIP)
}

// ExternalIP returns the external IP of the node
func (n *Nodes) ExternalIP(ctx context.Context, name string) (string, error) {
	return n.Address(ctx, name, corev1.NodeExternalIP)
}

// List returns the nodes matching fieldSelector
func (n *Nodes) List(ctx context.Context, fieldSelector string) ([]corev1.Node, error) {
	var list corev1.NodeList
	if err := n.listCluster(ctx, "nodes", &list); err != nil {
		return nil, err
	}
	return filter(list.Items, fieldSelector)
}

// ListNames returns the names of the nodes matching fieldSelector
func (n *Nodes) ListNames(ctx context.Context, fieldSelector string) ([]string, error) {
	nodes, err := n.List(ctx, fieldSelector)
	if err != nil {
		return nil, err
	}
	return lo.Map(nodes, func(node corev1.Node, _ int) string { return node.Name }), nil
}

// Events returns the events of the node from every namespace
func (n *Nodes) Events(ctx context.Context, name string) ([]corev1.Event, error) {
	node, err := n.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return n.eventsFor(ctx, "", node.UID)
}

// Patch applies patch to the node
func (n *Nodes) Patch(ctx context.Context, name string, patch []byte) error {
	node := &corev1.Node{}
	node.Name = name
	if err := n.patch(ctx, "node", node, mergePatch(patch)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Patched node", "node", name)
	return nil
}

// AddLabel sets a "key=value" label on the node, keeping its other labels
func (n *Nodes) AddLabel(ctx context.Context, name, label string) error {
	key, value, ok := strings.Cut(label, "=")
	if !ok || key == "" {
		return kubeerr.Newf(kubeerr.InvalidResourceBody, "label %q must have the form key=value", label)
	}

	node, err := n.Get(ctx, name)
	if err != nil {
		return err
	}
	original := node.DeepCopy()
	if node.Labels == nil {
		node.Labels = map[string]string{}
	}
	node.Labels[key] = value

	if err := n.patch(ctx, "node", node, client.MergeFrom(original)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Added label to node", "node", name, "label", label)
	return nil
}
