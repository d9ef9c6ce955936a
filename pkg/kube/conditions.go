package kube

import (
	"context"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/wait"
)

// goneCondition is satisfied once the object with the given uid no longer
// exists. An object of the same name but another uid is a recreation and
// counts as gone. An empty uid matches any object of that name. NotFound is
// the expected outcome here and is never surfaced as an error.
func goneCondition(a *api, kind, namespace, name string, uid types.UID, template client.Object) wait.ConditionFunc {
	return func(ctx context.Context) (bool, error) {
		obj := template.DeepCopyObject().(client.Object)
		err := a.get(ctx, kind, namespace, name, obj)
		if kubeerr.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return uid != "" && obj.GetUID() != uid, nil
	}
}

// readyCondition fetches the object and applies ready to it. An object that
// does not exist yet is not ready.
func readyCondition[T client.Object](a *api, kind, namespace, name string, newObj func() T, ready func(T) bool) wait.ConditionFunc {
	return func(ctx context.Context) (bool, error) {
		obj := newObj()
		err := a.get(ctx, kind, namespace, name, obj)
		if kubeerr.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return ready(obj), nil
	}
}
