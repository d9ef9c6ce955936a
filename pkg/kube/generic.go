package kube

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/chazu/litekube/pkg/kubeerr"
	"github.com/chazu/litekube/pkg/readiness"
)

// WaitForCondition blocks until the object of kind gvk carries the status
// condition conditionType with the given status. The namespace is ignored
// for cluster-scoped kinds and defaulted for namespaced ones.
func (c *Client) WaitForCondition(ctx context.Context, gvk schema.GroupVersionKind, namespace, name, conditionType, status string, opts WaitOptions) error {
	probe := &unstructured.Unstructured{}
	probe.SetGroupVersionKind(gvk)
	namespaced, err := c.api.client.IsObjectNamespaced(probe)
	if err != nil {
		return kubeerr.Translate("resolve "+gvk.String(), err)
	}
	if namespaced {
		namespace = c.api.namespace(namespace)
	} else {
		namespace = ""
	}

	kind := strings.ToLower(gvk.Kind)
	description := fmt.Sprintf("%s %s to have condition %s=%s", kind, objectKey(namespace, name), conditionType, status)
	return c.api.pollerFor(opts).Await(ctx, description, func(ctx context.Context) (bool, error) {
		obj := &unstructured.Unstructured{}
		obj.SetGroupVersionKind(gvk)
		err := c.api.get(ctx, kind, namespace, name, obj)
		if kubeerr.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return readiness.ConditionMatches(obj, conditionType, status)
	})
}
