package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/chazu/litekube/pkg/config"
	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/retry"
	"github.com/chazu/litekube/pkg/selector"
	"github.com/chazu/litekube/pkg/wait"
)

// api is the boundary to the cluster shared by every per-kind client. Each
// call names its operation and translates failures with kubeerr.Translate.
type api struct {
	client     client.Client
	clientset  kubernetes.Interface
	restConfig *rest.Config
	scheme     *runtime.Scheme
	config     config.Config
	poller     *wait.Poller
	retrier    *retry.Retrier
}

func newAPI(c client.Client, cs kubernetes.Interface, restConfig *rest.Config, cfg config.Config) *api {
	return &api{
		client:     c,
		clientset:  cs,
		restConfig: restConfig,
		scheme:     c.Scheme(),
		config:     cfg,
		poller:     wait.NewPoller(cfg.Wait),
		retrier:    retry.New(cfg.Retry),
	}
}

// namespace returns ns, or the default namespace when ns is empty
func (a *api) namespace(ns string) string {
	if ns == "" {
		return a.config.DefaultNamespace
	}
	return ns
}

// pollerFor applies the per-call overrides in opts to the shared poller
func (a *api) pollerFor(opts WaitOptions) *wait.Poller {
	return a.poller.WithTimeout(opts.Timeout).WithMaxWorkers(opts.MaxWorkers)
}

func objectKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

func (a *api) get(ctx context.Context, kind, namespace, name string, obj client.Object) error {
	err := a.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, obj)
	return kubeerr.Translate(fmt.Sprintf("get %s %s", kind, objectKey(namespace, name)), err)
}

func (a *api) list(ctx context.Context, kind string, list client.ObjectList, opts ListOptions) error {
	var listOpts []client.ListOption
	scope := "all namespaces"
	if !opts.AllNamespaces {
		ns := a.namespace(opts.Namespace)
		listOpts = append(listOpts, client.InNamespace(ns))
		scope = "namespace " + ns
	}
	err := a.client.List(ctx, list, listOpts...)
	return kubeerr.Translate(fmt.Sprintf("list %s in %s", kind, scope), err)
}

// listCluster lists cluster-scoped objects
func (a *api) listCluster(ctx context.Context, kind string, list client.ObjectList) error {
	return kubeerr.Translate("list "+kind, a.client.List(ctx, list))
}

func (a *api) create(ctx context.Context, kind string, obj client.Object) error {
	err := a.client.Create(ctx, obj)
	return kubeerr.Translate(fmt.Sprintf("create %s %s", kind, objectKey(obj.GetNamespace(), obj.GetName())), err)
}

func (a *api) delete(ctx context.Context, kind string, obj client.Object) error {
	err := a.client.Delete(ctx, obj)
	return kubeerr.Translate(fmt.Sprintf("delete %s %s", kind, objectKey(obj.GetNamespace(), obj.GetName())), err)
}

// deleteCurrent deletes the object currently stored under obj's name and
// returns its uid, so that a wait can tell it apart from a recreation
func (a *api) deleteCurrent(ctx context.Context, kind string, obj client.Object) (types.UID, error) {
	current := obj.DeepCopyObject().(client.Object)
	if err := a.get(ctx, kind, obj.GetNamespace(), obj.GetName(), current); err != nil {
		return "", err
	}
	if err := a.delete(ctx, kind, obj); err != nil {
		return "", err
	}
	return current.GetUID(), nil
}

func (a *api) patch(ctx context.Context, kind string, obj client.Object, patch client.Patch) error {
	err := a.client.Patch(ctx, obj, patch)
	return kubeerr.Translate(fmt.Sprintf("patch %s %s", kind, objectKey(obj.GetNamespace(), obj.GetName())), err)
}

// mergePatch wraps a JSON merge patch document
func mergePatch(data []byte) client.Patch {
	return client.RawPatch(types.MergePatchType, data)
}

// filter applies a field selector to listed items
func filter[T any](items []T, fieldSelector string) ([]T, error) {
	if fieldSelector == "" {
		return items, nil
	}
	return selector.Filter(items, fieldSelector)
}
