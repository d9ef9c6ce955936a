package kube

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
)

// ListOptions narrows a list call
type ListOptions struct {
	// Namespace to list in; empty uses the configured default namespace
	Namespace string

	// AllNamespaces lists across every namespace and ignores Namespace
	AllNamespaces bool

	// FieldSelector filters the result, e.g. "status.phase==Running"
	FieldSelector string
}

// WaitOptions controls whether and how long a mutating call blocks
type WaitOptions struct {
	// Wait blocks until the change has taken effect
	Wait bool

	// Timeout overrides the configured wait timeout when positive
	Timeout time.Duration

	// MaxWorkers overrides the configured worker bound when positive
	MaxWorkers int
}

// Wait returns options that block with the configured timeout
func Wait() WaitOptions {
	return WaitOptions{Wait: true}
}

// NoWait returns options that return as soon as the API call succeeds
func NoWait() WaitOptions {
	return WaitOptions{}
}

// Ref identifies a resource managed through this package
type Ref struct {
	Kind      string
	Name      string
	Namespace string
	UID       types.UID
}

func (r Ref) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s %s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s %s/%s", r.Kind, r.Namespace, r.Name)
}

// RefFor builds a Ref from obj. The kind is taken from the object's type
// metadata, or looked up in scheme when the type metadata is empty.
func RefFor(obj client.Object, scheme *runtime.Scheme) Ref {
	kind := obj.GetObjectKind().GroupVersionKind().Kind
	if kind == "" && scheme != nil {
		if gvk, err := apiutil.GVKForObject(obj, scheme); err == nil {
			kind = gvk.Kind
		}
	}
	return Ref{
		Kind:      kind,
		Name:      obj.GetName(),
		Namespace: obj.GetNamespace(),
		UID:       obj.GetUID(),
	}
}
