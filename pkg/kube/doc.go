// Package kube provides per-kind clients for pods, deployments, daemon sets,
// services, namespaces, secrets and nodes. Mutating calls can block until the
// change has taken effect in the cluster: created pods run their containers,
// deleted objects are gone, scaled deployments reach the new size.
//
// Every error returned by this package is a *kubeerr.Error. List calls accept
// a field selector that is evaluated client-side by package selector, so
// arbitrary nested fields such as metadata.ownerReferences[0].name can be
// matched.
//
// Waits are driven by package wait. Workloads with more pods than the
// configured threshold wait for their pods concurrently with a bounded number
// of workers.
package kube
