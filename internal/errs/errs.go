// Package errs defines the structured error taxonomy shared by the graph
// builder, the execution engine, and the API surface. Every error returned to
// an external caller is one of these kinds together with the name of the node
// it concerns, never a bare transport error.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed; the API layer maps each kind
// to an HTTP status.
type Kind string

const (
	// KindConfiguration marks a bad topology detected at build time. Fatal:
	// the server refuses to start.
	KindConfiguration Kind = "configuration"

	// KindRouting marks a router that cannot select a child for a request.
	KindRouting Kind = "routing"

	// KindNodeInvocation marks a failed call to a node's backing service.
	KindNodeInvocation Kind = "node_invocation"

	// KindCombination marks child results that cannot be merged.
	KindCombination Kind = "combination"

	// KindTimeout marks an exceeded per-call or overall deadline.
	KindTimeout Kind = "timeout"

	// KindGraphDepthExceeded marks a walk past the configured depth bound.
	KindGraphDepthExceeded Kind = "graph_depth_exceeded"
)

// Error is a structured failure: what went wrong, at which node, and why.
type Error struct {
	Kind    Kind
	Node    string
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: node %q: %s", e.Kind, e.Node, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Configuration reports a topology error detected at build or load time.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationAt is Configuration with the offending node's name attached.
func ConfigurationAt(node, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Node: node, Message: fmt.Sprintf(format, args...)}
}

// Routing reports that a router could not select a child.
func Routing(node, format string, args ...any) *Error {
	return &Error{Kind: KindRouting, Node: node, Message: fmt.Sprintf(format, args...)}
}

// NodeInvocation reports a failed backend call, wrapping the transport cause.
func NodeInvocation(node string, cause error) *Error {
	return &Error{
		Kind:    KindNodeInvocation,
		Node:    node,
		Message: cause.Error(),
		cause:   cause,
	}
}

// Combination reports child results that cannot be merged.
func Combination(node, format string, args ...any) *Error {
	return &Error{Kind: KindCombination, Node: node, Message: fmt.Sprintf(format, args...)}
}

// Timeout reports an exceeded deadline, attributed to the node whose call was
// in flight or about to be issued.
func Timeout(node, format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Node: node, Message: fmt.Sprintf(format, args...)}
}

// DepthExceeded reports a walk that passed the configured depth bound.
func DepthExceeded(node string, max int) *Error {
	return &Error{
		Kind:    KindGraphDepthExceeded,
		Node:    node,
		Message: fmt.Sprintf("graph walk exceeded maximum depth %d", max),
	}
}

// As unwraps err into a *Error, or wraps an arbitrary error into the given
// fallback kind so callers always see the structured form.
func As(err error, fallback Kind, node string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: fallback, Node: node, Message: err.Error(), cause: err}
}

// IsKind reports whether err is a structured error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
