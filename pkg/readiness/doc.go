// Package readiness provides the predicates that decide when a Kubernetes
// resource has reached the state a caller is waiting for. It covers the pod
// container state machine, event scanning for pull and authentication
// failures, replica and scheduling counts for workloads, and status
// conditions of arbitrary objects.
//
// Predicates are pure functions over already-fetched objects; fetching and
// polling live in the kube and wait packages.
package readiness
