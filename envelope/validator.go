package envelope

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/taskhub/webhook-gateway/errs"
)

// commandPattern validates command names: v{major}/{category}/{action}
var commandPattern = regexp.MustCompile(`^v\d+/[a-z]+/[a-z-]+$`)

// idempotencyKeyPattern validates caller-supplied idempotency keys
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

/* Validator checks envelope structure and timestamp freshness.
 * Pure function of the input and the injected clock, so tests can
 * pin time instead of sleeping.
 */
type Validator struct {
	MaxRequestAge time.Duration
	MaxClockSkew  time.Duration
	Now           func() time.Time
}

// NewValidator creates a validator with the given freshness window
func NewValidator(maxRequestAge, maxClockSkew time.Duration) *Validator {
	return &Validator{
		MaxRequestAge: maxRequestAge,
		MaxClockSkew:  maxClockSkew,
		Now:           time.Now,
	}
}

// Validate parses and checks a raw request body, naming the first
// violated constraint. All failures carry INVALID_REQUEST.
func (v *Validator) Validate(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, errs.Newf(errs.CodeInvalidRequest, "malformed request body: %v", err)
	}

	if env.Command == "" {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "command is required")
	}
	if !commandPattern.MatchString(env.Command) {
		return Envelope{}, errs.Newf(errs.CodeInvalidRequest, "command must match v{major}/{category}/{action}: %s", env.Command)
	}

	if len(env.Data) == 0 {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "data is required")
	}
	var dataProbe map[string]any
	if err := json.Unmarshal(env.Data, &dataProbe); err != nil {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "data must be a JSON object")
	}

	if env.Meta.RequestID == "" {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "meta.requestId is required")
	}
	if env.Meta.Source == "" {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "meta.source is required")
	}
	if env.Meta.Timestamp == "" {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "meta.timestamp is required")
	}

	// time.Parse with RFC3339 is strict: out-of-range fields, missing
	// zone designators and lowercase separators all fail here
	ts, err := time.Parse(time.RFC3339, env.Meta.Timestamp)
	if err != nil {
		return Envelope{}, errs.Newf(errs.CodeInvalidRequest, "meta.timestamp must be ISO-8601: %s", env.Meta.Timestamp)
	}

	if env.Meta.IdempotencyKey != "" && !idempotencyKeyPattern.MatchString(env.Meta.IdempotencyKey) {
		return Envelope{}, errs.New(errs.CodeInvalidRequest, "meta.idempotencyKey must be 1-255 characters of [A-Za-z0-9_-]")
	}

	if err := v.ValidateTimestampFreshness(ts); err != nil {
		return Envelope{}, err
	}

	return env, nil
}

// ValidateTimestampFreshness rejects requests outside the freshness window:
// older than MaxRequestAge, or further than MaxClockSkew in the future.
func (v *Validator) ValidateTimestampFreshness(ts time.Time) error {
	now := v.Now()
	age := now.Sub(ts)
	if age > v.MaxRequestAge {
		return errs.Newf(errs.CodeInvalidRequest, "request too old: %s exceeds max age %s", age.Round(time.Second), v.MaxRequestAge)
	}
	if age < -v.MaxClockSkew {
		return errs.Newf(errs.CodeInvalidRequest, "request timestamp too far in the future: %s exceeds allowed skew %s", (-age).Round(time.Second), v.MaxClockSkew)
	}
	return nil
}
