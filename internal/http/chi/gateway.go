package chi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/envelope"
	"github.com/taskhub/webhook-gateway/errs"
)

/* gateway is the single place where commands become HTTP. Handlers never
 * write responses; every failure funnels through writeError so the
 * code→status table and the audit log stay in one spot.
 */
type gateway struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func newGateway(cfg Config, deps Deps) *gateway {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &gateway{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

func (g *gateway) handleCommand(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if g.deps.Metrics != nil {
				g.deps.Metrics.RequestsRejectedTotal.WithLabelValues("body_limit").Inc()
			}
			g.writeError(w, r, "", "", errs.New(errs.CodeValidation, "request body too large"))
			return
		}
		g.writeError(w, r, "", "", errs.New(errs.CodeInvalidRequest, "reading request body failed"))
		return
	}

	env, err := g.deps.Validator.Validate(body)
	if err != nil {
		g.writeError(w, r, "", "", err)
		return
	}

	// replay a captured response for a repeated idempotency key
	if env.Meta.IdempotencyKey != "" {
		if entry, found := g.deps.Idempotency.Get(identity.Key, env.Meta.IdempotencyKey); found {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotent-Replay", "true")
			w.WriteHeader(entry.StatusCode)
			w.Write(entry.Body)
			return
		}
	}

	reqCtx := &command.RequestContext{
		RequestID:   env.Meta.RequestID,
		Source:      env.Meta.Source,
		APIKeyName:  identity.Name,
		WorkspaceID: identity.WorkspaceID,
	}

	result, err := g.deps.Router.Route(r.Context(), env.Command, env.Data, reqCtx)
	if err != nil {
		g.audit(r, env, identity.Name, err)
		status, response := g.errorResponse(env.Meta.RequestID, err)
		g.countCommand(env.Command, err)
		g.capture(identity.Key, env.Meta.IdempotencyKey, status, response)
		writeJSON(w, status, response)
		return
	}

	g.countCommand(env.Command, nil)
	response := envelope.NewSuccessResponse(env.Meta.RequestID, result.Data, g.now())
	g.capture(identity.Key, env.Meta.IdempotencyKey, http.StatusOK, response)
	writeJSON(w, http.StatusOK, response)
}

// errorResponse maps a typed error onto the wire format. Unclassified
// errors never reach the caller in detail.
func (g *gateway) errorResponse(requestID string, err error) (int, envelope.Response) {
	domainErr := errs.AsError(err)
	if domainErr == nil {
		return http.StatusInternalServerError, envelope.NewErrorResponse(
			requestID, string(errs.CodeInternal), "internal error", nil, g.now())
	}
	return domainErr.Code.HTTPStatus(), envelope.NewErrorResponse(
		requestID, string(domainErr.Code), domainErr.Message, domainErr.Details, g.now())
}

// audit logs every failed command with its full origin context
func (g *gateway) audit(r *http.Request, env envelope.Envelope, identity string, err error) {
	g.logger.Error("command failed",
		"command", env.Command,
		"request_id", env.Meta.RequestID,
		"source", env.Meta.Source,
		"identity", identity,
		"client", clientAddr(r),
		"error", err,
	)
}

func (g *gateway) countCommand(cmd string, err error) {
	if g.deps.Metrics == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = string(errs.CodeInternal)
		if domainErr := errs.AsError(err); domainErr != nil {
			code = string(domainErr.Code)
		}
	}
	g.deps.Metrics.CommandsTotal.WithLabelValues(cmd, code).Inc()
}

// capture stores the outcome for idempotent replay
func (g *gateway) capture(apiKey, idempotencyKey string, status int, response envelope.Response) {
	if idempotencyKey == "" {
		return
	}
	body, err := json.Marshal(response)
	if err != nil {
		return
	}
	g.deps.Idempotency.Store(apiKey, idempotencyKey, status, body)
}

// writeError handles failures raised before the router is reached
func (g *gateway) writeError(w http.ResponseWriter, r *http.Request, cmd, requestID string, err error) {
	identity, _ := identityFrom(r.Context())
	g.logger.Error("request rejected",
		"command", cmd,
		"request_id", requestID,
		"identity", identity.Name,
		"client", clientAddr(r),
		"error", err,
	)
	if cmd != "" {
		g.countCommand(cmd, err)
	}
	status, response := g.errorResponse(requestID, err)
	writeJSON(w, status, response)
}

// reject is the middleware rejection path; the envelope was never parsed
// so the response meta carries no request id
func (g *gateway) reject(w http.ResponseWriter, r *http.Request, stage string, code errs.Code, message string) {
	g.logger.Warn("request rejected by middleware",
		"stage", stage,
		"client", clientAddr(r),
		"code", string(code),
	)
	if g.deps.Metrics != nil {
		g.deps.Metrics.RequestsRejectedTotal.WithLabelValues(stage).Inc()
	}
	writeJSON(w, code.HTTPStatus(), envelope.NewErrorResponse("", string(code), message, nil, g.now()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
