// Package kubeerr defines the closed error taxonomy surfaced by litekube and
// translates Kubernetes API failures into it. Translation happens once, at the
// boundary of every call into the API server; callers only ever see *Error.
package kubeerr
