package manifest

import (
	"context"
	"slices"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kube"
	"github.com/chazu/litekube/pkg/kubeerr"
)

// Supported lists the kinds Apply and Delete accept, sorted
func Supported() []string {
	kinds := lo.Keys(kindTiers)
	slices.Sort(kinds)
	return kinds
}

// typed converts obj into the built-in type registered for its kind. Objects
// without a namespace land in the client's default namespace.
func typed(c *kube.Client, obj *unstructured.Unstructured) (client.Object, error) {
	if _, ok := kindTiers[obj.GetKind()]; !ok {
		return nil, kubeerr.Newf(kubeerr.InvalidResourceBody, "unsupported kind %s of %s", obj.GetKind(), obj.GetName())
	}

	runtimeObj, err := c.Scheme().New(obj.GroupVersionKind())
	if err != nil {
		return nil, kubeerr.Wrap(kubeerr.InvalidResourceBody, err, "resolve "+obj.GroupVersionKind().String())
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, runtimeObj); err != nil {
		return nil, kubeerr.Wrap(kubeerr.InvalidResourceBody, err, "convert "+key(obj))
	}
	out, ok := runtimeObj.(client.Object)
	if !ok {
		return nil, kubeerr.Newf(kubeerr.InvalidResourceBody, "%s is not an object", obj.GetKind())
	}
	if obj.GetKind() != "Namespace" && out.GetNamespace() == "" {
		out.SetNamespace(c.Config().DefaultNamespace)
	}
	return out, nil
}

// Apply creates objs in dependency order through the per-kind clients and
// returns a reference to each created object. Creates that fail because the
// target namespace does not exist yet are retried; with opts.Wait each object
// is then awaited once, outside the retry. Apply stops at the first failure
// and returns the references of the objects created so far.
func Apply(ctx context.Context, c *kube.Client, objs []*unstructured.Unstructured, opts kube.WaitOptions) ([]kube.Ref, error) {
	logger := log.FromContext(ctx)

	converted := make([]*unstructured.Unstructured, 0, len(objs))
	bodies := make(map[*unstructured.Unstructured]client.Object, len(objs))
	for _, obj := range objs {
		body, err := typed(c, obj)
		if err != nil {
			return nil, err
		}
		normalized := obj.DeepCopy()
		normalized.SetNamespace(body.GetNamespace())
		converted = append(converted, normalized)
		bodies[normalized] = body
	}

	ordered, err := Order(converted)
	if err != nil {
		return nil, err
	}

	createOnly := opts
	createOnly.Wait = false

	refs := make([]kube.Ref, 0, len(ordered))
	for _, obj := range ordered {
		body := bodies[obj]
		var created client.Object
		err := c.Retrier().Do(ctx, "create "+key(obj), func(ctx context.Context) (bool, error) {
			// Each attempt gets a fresh copy; a failed create may have mutated it
			created = body.DeepCopyObject().(client.Object)
			return true, create(ctx, c, created, createOnly)
		})
		if err != nil {
			return refs, err
		}
		ref := kube.RefFor(created, c.Scheme())
		refs = append(refs, ref)

		if opts.Wait {
			if err := await(ctx, c, created, opts); err != nil {
				return refs, err
			}
		}
		logger.V(1).Info("Applied object", "object", ref.String())
	}
	logger.Info("Applied manifest", "objects", len(refs))
	return refs, nil
}

func create(ctx context.Context, c *kube.Client, obj client.Object, opts kube.WaitOptions) error {
	var err error
	switch body := obj.(type) {
	case *corev1.Namespace:
		_, err = c.Namespaces.Create(ctx, body, opts)
	case *corev1.Secret:
		_, err = c.Secrets.Create(ctx, body, opts)
	case *corev1.Service:
		_, err = c.Services.Create(ctx, body, opts)
	case *corev1.Pod:
		_, err = c.Pods.Create(ctx, body, opts)
	case *appsv1.Deployment:
		_, err = c.Deployments.Create(ctx, body, opts)
	case *appsv1.DaemonSet:
		_, err = c.DaemonSets.Create(ctx, body, opts)
	default:
		err = kubeerr.Newf(kubeerr.InvalidResourceBody, "unsupported object %T", obj)
	}
	return err
}

// await blocks until the created object is ready the way its kind's Create
// would wait for it
func await(ctx context.Context, c *kube.Client, obj client.Object, opts kube.WaitOptions) error {
	ns, name := obj.GetNamespace(), obj.GetName()
	switch obj.(type) {
	case *corev1.Namespace:
		return c.Namespaces.WaitForActive(ctx, name, opts)
	case *corev1.Secret:
		return c.Secrets.WaitForCreation(ctx, ns, name, opts)
	case *corev1.Service:
		return c.Services.WaitForReady(ctx, ns, name, opts)
	case *corev1.Pod:
		return c.Pods.WaitForContainersToRun(ctx, ns, name, opts)
	case *appsv1.Deployment:
		return c.Deployments.WaitForRunning(ctx, ns, name, opts)
	case *appsv1.DaemonSet:
		return c.DaemonSets.WaitForRunning(ctx, ns, name, opts)
	}
	return kubeerr.Newf(kubeerr.InvalidResourceBody, "unsupported object %T", obj)
}

// Delete removes objs in reverse dependency order. Objects that no longer
// exist are skipped.
func Delete(ctx context.Context, c *kube.Client, objs []*unstructured.Unstructured, opts kube.WaitOptions) error {
	normalized := make([]*unstructured.Unstructured, 0, len(objs))
	for _, obj := range objs {
		body, err := typed(c, obj)
		if err != nil {
			return err
		}
		copied := obj.DeepCopy()
		copied.SetNamespace(body.GetNamespace())
		normalized = append(normalized, copied)
	}

	ordered, err := Order(normalized)
	if err != nil {
		return err
	}

	for i := len(ordered) - 1; i >= 0; i-- {
		obj := ordered[i]
		if err := kubeerr.IgnoreNotFound(remove(ctx, c, obj, opts)); err != nil {
			return err
		}
	}
	log.FromContext(ctx).Info("Deleted manifest", "objects", len(ordered))
	return nil
}

func remove(ctx context.Context, c *kube.Client, obj *unstructured.Unstructured, opts kube.WaitOptions) error {
	ns, name := obj.GetNamespace(), obj.GetName()
	switch obj.GetKind() {
	case "Namespace":
		return c.Namespaces.Delete(ctx, name, opts)
	case "Secret":
		return c.Secrets.Delete(ctx, ns, name, opts)
	case "Service":
		return c.Services.Delete(ctx, ns, name, opts)
	case "Pod":
		return c.Pods.Delete(ctx, ns, name, opts)
	case "Deployment":
		return c.Deployments.Delete(ctx, ns, name, opts)
	case "DaemonSet":
		return c.DaemonSets.Delete(ctx, ns, name, opts)
	}
	return kubeerr.Newf(kubeerr.InvalidResourceBody, "unsupported kind %s of %s", obj.GetKind(), name)
}
