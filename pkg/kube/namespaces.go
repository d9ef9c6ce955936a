package kube

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/readiness"
)

// Namespaces manages namespaces
type Namespaces struct {
	*api
}

func newNamespace() *corev1.Namespace { return &corev1.Namespace{} }

// Create creates the namespace and returns its name. With opts.Wait it
// blocks until the namespace is Active.
func (n *Namespaces) Create(ctx context.Context, namespace *corev1.Namespace, opts WaitOptions) (string, error) {
	if namespace == nil || namespace.Name == "" {
		return "", kubeerr.New(kubeerr.InvalidResourceBody, "namespace body must have metadata.name")
	}
	if err := n.create(ctx, "namespace", namespace); err != nil {
		return "", err
	}
	log.FromContext(ctx).Info("Created namespace", "namespace", namespace.Name)

	if opts.Wait {
		if err := n.WaitForActive(ctx, namespace.Name, opts); err != nil {
			return namespace.Name, err
		}
	}
	return namespace.Name, nil
}

// WaitForActive blocks until the namespace exists and is Active
func (n *Namespaces) WaitForActive(ctx context.Context, name string, opts WaitOptions) error {
	return n.pollerFor(opts).Await(ctx, fmt.Sprintf("namespace %s to be active", name),
		readyCondition(n.api, "namespace", "", name, newNamespace, readiness.NamespaceActive))
}

// Delete deletes the namespace. With opts.Wait it blocks until it is gone,
// which includes the removal of everything it contained.
func (n *Namespaces) Delete(ctx context.Context, name string, opts WaitOptions) error {
	namespace := newNamespace()
	namespace.Name = name
	uid, err := n.deleteCurrent(ctx, "namespace", namespace)
	if err != nil {
		return err
	}
	log.FromContext(ctx).Info("Deleted namespace", "namespace", name, "uid", uid)

	if opts.Wait {
		return n.pollerFor(opts).Await(ctx, fmt.Sprintf("namespace %s to be deleted", name),
			goneCondition(n.api, "namespace", "", name, uid, newNamespace()))
	}
	return nil
}

// Get returns the namespace
func (n *Namespaces) Get(ctx context.Context, name string) (*corev1.Namespace, error) {
	namespace := newNamespace()
	if err := n.get(ctx, "namespace", "", name, namespace); err != nil {
		return nil, err
	}
	return namespace, nil
}

// List returns the namespaces matching fieldSelector
func (n *Namespaces) List(ctx context.Context, fieldSelector string) ([]corev1.Namespace, error) {
	var list corev1.NamespaceList
	if err := n.listCluster(ctx, "namespaces", &list); err != nil {
		return nil, err
	}
	return filter(list.Items, fieldSelector)
}

// ListNames returns the names of the namespaces matching fieldSelector
func (n *Namespaces) ListNames(ctx context.Context, fieldSelector string) ([]string, error) {
	namespaces, err := n.List(ctx, fieldSelector)
	if err != nil {
		return nil, err
	}
	return lo.Map(namespaces, func(namespace corev1.Namespace, _ int) string { return namespace.Name }), nil
}
