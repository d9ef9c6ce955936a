package kube

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/readiness"
)

// DaemonSets manages daemon sets and waits on the pods they own
type DaemonSets struct {
	*api
	pods *Pods
}

func newDaemonSet() *appsv1.DaemonSet { return &appsv1.DaemonSet{} }

// Create creates the daemon set and returns its name. With opts.Wait it
// blocks until a pod is scheduled on every targeted node and all of them run.
func (d *DaemonSets) Create(ctx context.Context, daemonSet *appsv1.DaemonSet, opts WaitOptions) (string, error) {
	if daemonSet == nil {
		return "", kubeerr.New(kubeerr.InvalidResourceBody, "daemon set body must not be nil")
	}
	if err := validateTemplate("daemon set", daemonSet.Name, daemonSet.Spec.Template); err != nil {
		return "", err
	}
	daemonSet.Namespace = d.namespace(daemonSet.Namespace)

	if err := d.create(ctx, "daemon set", daemonSet); err != nil {
		return "", err
	}
	log.FromContext(ctx).Info("Created daemon set", "daemonSet", objectKey(daemonSet.Namespace, daemonSet.Name))

	if opts.Wait {
		if err := d.WaitForRunning(ctx, daemonSet.Namespace, daemonSet.Name, opts); err != nil {
			return daemonSet.Name, err
		}
	}
	return daemonSet.Name, nil
}

// WaitForRunning blocks until every targeted node has a pod scheduled and
// the containers of every pod run
func (d *DaemonSets) WaitForRunning(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = d.namespace(namespace)

	err := d.pollerFor(opts).Await(ctx,
		fmt.Sprintf("pods of daemon set %s to be scheduled", objectKey(namespace, name)),
		readyCondition(d.api, "daemon set", namespace, name, newDaemonSet, readiness.DaemonSetScheduled))
	if err != nil {
		return err
	}

	pods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}
	return d.pods.awaitRunning(ctx, pods, opts)
}

// Delete deletes the daemon set. With opts.Wait it blocks until every pod it
// owned before the call is gone.
func (d *DaemonSets) Delete(ctx context.Context, namespace, name string, opts WaitOptions) error {
	namespace = d.namespace(namespace)
	pods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}

	daemonSet := newDaemonSet()
	daemonSet.Name, daemonSet.Namespace = name, namespace
	if err := d.delete(ctx, "daemon set", daemonSet); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Deleted daemon set", "daemonSet", objectKey(namespace, name))

	if opts.Wait {
		return d.pods.awaitDeleted(ctx, pods, opts)
	}
	return nil
}

// Patch applies patch to the daemon set. With opts.Wait it blocks until the
// previous pods are replaced when the pod template changed, then until the
// daemon set runs again.
func (d *DaemonSets) Patch(ctx context.Context, namespace, name string, patch []byte, opts WaitOptions) error {
	namespace = d.namespace(namespace)
	before, err := d.Get(ctx, namespace, name)
	if err != nil {
		return err
	}
	oldPods, err := d.Pods(ctx, namespace, name)
	if err != nil {
		return err
	}

	after := before.DeepCopy()
	if err := d.patch(ctx, "daemon set", after, mergePatch(patch)); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Patched daemon set", "daemonSet", objectKey(namespace, name))

	if !opts.Wait {
		return nil
	}
	if readiness.TemplateHash(before.Spec.Template) != readiness.TemplateHash(after.Spec.Template) {
		if err := d.pods.awaitDeleted(ctx, oldPods, opts); err != nil {
			return err
		}
	}
	return d.WaitForRunning(ctx, namespace, name, opts)
}

// Get returns the daemon set
func (d *DaemonSets) Get(ctx context.Context, namespace, name string) (*appsv1.DaemonSet, error) {
	daemonSet := newDaemonSet()
	if err := d.get(ctx, "daemon set", d.namespace(namespace), name, daemonSet); err != nil {
		return nil, err
	}
	return daemonSet, nil
}

// List returns the daemon sets matching opts
func (d *DaemonSets) List(ctx context.Context, opts ListOptions) ([]appsv1.DaemonSet, error) {
	var list appsv1.DaemonSetList
	if err := d.list(ctx, "daemon sets", &list, opts); err != nil {
		return nil, err
	}
	return filter(list.Items, opts.FieldSelector)
}

// ListNames returns the names of the daemon sets matching opts
func (d *DaemonSets) ListNames(ctx context.Context, opts ListOptions) ([]string, error) {
	daemonSets, err := d.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(daemonSets, func(daemonSet appsv1.DaemonSet, _ int) string { return daemonSet.Name }), nil
}

// Pods returns the pods owned by the daemon set
func (d *DaemonSets) Pods(ctx context.Context, namespace, name string) ([]corev1.Pod, error) {
	return d.pods.List(ctx, ListOptions{Namespace: namespace, FieldSelector: ownedBy("DaemonSet", name)})
}

// Events returns the events of the daemon set
func (d *DaemonSets) Events(ctx context.Context, namespace, name string) ([]corev1.Event, error) {
	daemonSet, err := d.Get(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return d.eventsFor(ctx, daemonSet.Namespace, daemonSet.UID)
}
