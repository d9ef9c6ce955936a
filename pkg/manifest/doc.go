// Package manifest reads multi-document YAML or JSON manifests and applies
// them through the per-kind clients of package kube. Objects are created in
// dependency order: namespaces before the objects they contain, secrets and
// services before the workloads that consume them.
package manifest
