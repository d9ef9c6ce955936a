package manifest

import (
	"fmt"

	"github.com/dominikbraun/graph"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/chazu/litekube/pkg/kubeerr"
)

// tier groups kinds by when they must exist. Objects of a lower tier in the
// same namespace are created first.
type tier int

const (
	tierNamespace tier = iota
	tierConfig
	tierWorkload
)

var kindTiers = map[string]tier{
	"Namespace":  tierNamespace,
	"Secret":     tierConfig,
	"Service":    tierConfig,
	"Pod":        tierWorkload,
	"Deployment": tierWorkload,
	"DaemonSet":  tierWorkload,
}

// key identifies an object within a manifest
func key(obj *unstructured.Unstructured) string {
	return fmt.Sprintf("%s/%s/%s", obj.GetKind(), obj.GetNamespace(), obj.GetName())
}

// dependsOn reports whether obj has to wait for other
func dependsOn(obj, other *unstructured.Unstructured) bool {
	objTier, ok := kindTiers[obj.GetKind()]
	if !ok {
		return false
	}
	otherTier, ok := kindTiers[other.GetKind()]
	if !ok {
		return false
	}

	if otherTier == tierNamespace {
		return objTier != tierNamespace && obj.GetNamespace() == other.GetName()
	}
	return otherTier < objTier && obj.GetNamespace() == other.GetNamespace()
}

// Order sorts objs so that every object comes after the objects it depends
// on. Among objects that are ready at the same time the earlier one in objs
// goes first. Duplicate objects are rejected.
func Order(objs []*unstructured.Unstructured) ([]*unstructured.Unstructured, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	byKey := make(map[string]*unstructured.Unstructured, len(objs))
	position := make(map[string]int, len(objs))
	for i, obj := range objs {
		k := key(obj)
		if _, dup := byKey[k]; dup {
			return nil, kubeerr.Newf(kubeerr.InvalidResourceBody, "duplicate object %s", k)
		}
		byKey[k] = obj
		position[k] = i
		if err := g.AddVertex(k); err != nil {
			return nil, fmt.Errorf("failed to add vertex %s: %w", k, err)
		}
	}

	// An edge a -> b means a must be created before b
	for _, obj := range objs {
		for _, other := range objs {
			if obj == other || !dependsOn(obj, other) {
				continue
			}
			if err := g.AddEdge(key(other), key(obj)); err != nil {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", key(other), key(obj), err)
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return position[a] < position[b]
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute topological sort: %w", err)
	}

	sorted := make([]*unstructured.Unstructured, 0, len(order))
	for _, k := range order {
		sorted = append(sorted, byKey[k])
	}
	return sorted, nil
}
