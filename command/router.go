package command

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/taskhub/webhook-gateway/errs"
)

/* Router maps command names to handlers. Exact patterns win over
 * wildcard patterns; wildcards match in registration order.
 */

type registration struct {
	pattern string
	handler Handler
}

type Router struct {
	exact     map[string]Handler
	wildcards []registration
}

// NewRouter creates an empty command router
func NewRouter() *Router {
	return &Router{
		exact: make(map[string]Handler),
	}
}

// Register associates a pattern with a handler. A pattern is either an
// exact command name or a trailing-wildcard prefix such as "v1/tasks/*".
// A later exact registration for the same pattern replaces the earlier one.
func (r *Router) Register(pattern string, handler Handler) {
	if strings.HasSuffix(pattern, "/*") {
		r.wildcards = append(r.wildcards, registration{pattern: pattern, handler: handler})
		return
	}
	r.exact[pattern] = handler
}

// Route finds the handler for a command and invokes it.
// Fails with NOT_FOUND when nothing matches.
func (r *Router) Route(ctx context.Context, cmd string, data json.RawMessage, reqCtx *RequestContext) (Result, error) {
	handler, ok := r.lookup(cmd)
	if !ok {
		return Result{}, errs.Newf(errs.CodeNotFound, "unknown command: %s", cmd)
	}

	result := handler(ctx, cmd, data, reqCtx)
	if err := result.Err(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// Has reports whether a command would be routed
func (r *Router) Has(cmd string) bool {
	_, ok := r.lookup(cmd)
	return ok
}

func (r *Router) lookup(cmd string) (Handler, bool) {
	if handler, ok := r.exact[cmd]; ok {
		return handler, true
	}
	for _, reg := range r.wildcards {
		prefix := strings.TrimSuffix(reg.pattern, "*")
		if strings.HasPrefix(cmd, prefix) {
			return reg.handler, true
		}
	}
	return nil, false
}
