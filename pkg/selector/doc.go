// Package selector implements the client-side field selector language used to
// narrow list results. A selector is a comma-separated list of clauses that are
// ANDed together; each clause compares the value found at a dotted, optionally
// indexed attribute path against a literal:
//
//	metadata.ownerReferences[0].kind==ReplicaSet,status.phase!=Pending
//
// Paths that do not resolve on an object make the clause false rather than
// failing, so collections of differently shaped objects can be filtered safely.
package selector
