package readiness

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ReplicasCreated reports whether a Deployment has created as many replicas
// as it asks for
func ReplicasCreated(deployment *appsv1.Deployment) bool {
	if deployment == nil {
		return false
	}
	return desiredReplicas(deployment.Spec.Replicas) == deployment.Status.Replicas
}

// desiredReplicas applies the API server default of one replica
func desiredReplicas(replicas *int32) int32 {
	if replicas == nil {
		return 1
	}
	return *replicas
}

// DaemonSetScheduled reports whether a DaemonSet has a pod scheduled on
// every node it targets
func DaemonSetScheduled(daemonSet *appsv1.DaemonSet) bool {
	if daemonSet == nil {
		return false
	}
	return daemonSet.Status.DesiredNumberScheduled == daemonSet.Status.CurrentNumberScheduled
}

// NamespaceActive reports whether a Namespace is in the Active phase
func NamespaceActive(namespace *corev1.Namespace) bool {
	return namespace != nil && namespace.Status.Phase == corev1.NamespaceActive
}

// ServiceReady reports whether a Service can receive traffic. LoadBalancer
// services need at least one ingress point; every other type is ready once
// it exists.
func ServiceReady(service *corev1.Service) bool {
	if service == nil {
		return false
	}
	if service.Spec.Type == corev1.ServiceTypeLoadBalancer {
		return len(service.Status.LoadBalancer.Ingress) > 0
	}
	return true
}

// ConditionMatches reports whether obj carries a status condition of the
// given type with the given status
func ConditionMatches(obj *unstructured.Unstructured, conditionType, conditionStatus string) (bool, error) {
	if obj == nil {
		return false, fmt.Errorf("object cannot be nil")
	}

	conditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil {
		return false, fmt.Errorf("failed to get conditions: %w", err)
	}
	if !found {
		return false, nil
	}

	for _, cond := range conditions {
		condMap, ok := cond.(map[string]interface{})
		if !ok {
			continue
		}

		condType, _, _ := unstructured.NestedString(condMap, "type")
		if condType != conditionType {
			continue
		}

		condStatus, _, _ := unstructured.NestedString(condMap, "status")
		return condStatus == conditionStatus, nil
	}

	return false, nil
}
