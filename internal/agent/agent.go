// ABOUTME: Agent invoker contract: ordered turns in, tagged Result out
// ABOUTME: Result is Ok(text) or a failure Kind; Unconfigured always fails

package agent

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is wrapped by every invocation failure.
var ErrUnavailable = errors.New("agent unavailable")

// Role is the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the history replayed to the model.
type Turn struct {
	Role    Role
	Content string
}

// Invoker sends an ordered history to a model and returns its reply.
// Implementations must not modify history and make a single attempt.
type Invoker interface {
	Invoke(ctx context.Context, history []Turn) Result
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, history []Turn) Result

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, history []Turn) Result {
	return f(ctx, history)
}

// Kind classifies an invocation outcome.
type Kind int

const (
	KindOK Kind = iota
	KindNotConfigured
	KindUpstream
	KindEmptyReply
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotConfigured:
		return "not_configured"
	case KindUpstream:
		return "upstream"
	case KindEmptyReply:
		return "empty_reply"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is either Ok(text) or a failure of some Kind.
// The zero value is a failure of KindEmptyReply.
type Result struct {
	text  string
	kind  Kind
	cause error
	set   bool
}

// Ok returns a successful result carrying text.
func Ok(text string) Result {
	return Result{text: text, kind: KindOK, set: true}
}

// Fail returns a failed result. KindOK is coerced to KindUpstream.
func Fail(kind Kind, cause error) Result {
	if kind == KindOK {
		kind = KindUpstream
	}
	return Result{kind: kind, cause: cause, set: true}
}

// OK reports whether the invocation produced a reply.
func (r Result) OK() bool {
	return r.set && r.kind == KindOK
}

// Text returns the reply; empty for failures.
func (r Result) Text() string {
	return r.text
}

// Kind returns the outcome classification.
func (r Result) Kind() Kind {
	if !r.set {
		return KindEmptyReply
	}
	return r.kind
}

// Err returns nil for Ok results and an *Error otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Kind: r.Kind(), Cause: r.cause}
}

// Error describes a failed invocation. It matches ErrUnavailable with errors.Is.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("agent unavailable (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("agent unavailable (%s)", e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Cause}
}

// Unconfigured is the invoker used when no model credentials are present.
type Unconfigured struct {
	Reason string
}

// Invoke always fails with KindNotConfigured.
func (u Unconfigured) Invoke(context.Context, []Turn) Result {
	reason := u.Reason
	if reason == "" {
		reason = "no model configured"
	}
	return Fail(KindNotConfigured, errors.New(reason))
}

// Configured reports whether inv can ever produce a reply.
func Configured(inv Invoker) bool {
	switch inv.(type) {
	case nil, Unconfigured, *Unconfigured:
		return false
	}
	return true
}
