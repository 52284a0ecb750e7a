package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Blodie/locust-stages/internal/tpo"
)

// maxAttempts bounds the token-expiry retry: one original attempt plus at
// most one retry. No other automatic retries exist.
const maxAttempts = 2

// Expiry signals for the standard implementation, matched as substrings of
// the response text.
const (
	expiredTokenText = "Token is expired"
	invalidTokenText = "Invalid authorization token"
)

// Doer issues a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives the outcome of every issued request. The metrics engine
// implements it; a nil recorder is allowed.
type Recorder interface {
	Record(name string, duration time.Duration, success bool, bytes int64)
}

// Body is a parsed response body. On parse failure it degrades to
// {"code": status, "text": raw}.
type Body map[string]any

// Token returns the body's token field, if present.
func (b Body) Token() (string, bool) {
	t, ok := b["token"].(string)
	return t, ok && t != ""
}

// Config carries the sender's policy knobs.
type Config struct {
	// Environment decides whether live tokens are required at all.
	Environment tpo.Environment

	// UseGlobalTokens shares refreshed bearer tokens across all future
	// calls for the same vendor instead of scoping them to one request.
	UseGlobalTokens bool
}

// Sender drives one logical call end to end: ensure a usable bearer token,
// issue the request, refresh-and-retry once on a token-expiry signal, parse
// the body, and classify the outcome for the recorder.
//
// Failures are reported to the recorder as data, never returned as errors;
// the returned error is reserved for transport breakdowns and request
// construction problems.
type Sender struct {
	client   Doer
	builder  *tpo.Builder
	recorder Recorder
	cfg      Config
}

// NewSender creates a sender issuing requests through client.
func NewSender(client Doer, builder *tpo.Builder, cfg Config, recorder Recorder) *Sender {
	return &Sender{client: client, builder: builder, recorder: recorder, cfg: cfg}
}

// Send executes the full pipeline for spec and returns the parsed (or
// fallback) body regardless of success/failure classification.
func (s *Sender) Send(ctx context.Context, spec *tpo.RequestSpec) (Body, error) {
	if s.needsToken(spec) {
		if err := s.refreshToken(ctx, spec); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		status, raw, err := s.issue(ctx, spec)
		elapsed := time.Since(start)
		if err != nil {
			s.record(spec.Name, elapsed, false, 0)
			return nil, fmt.Errorf("issuing %s: %w", spec.Name, err)
		}

		if attempt < maxAttempts && tokenExpired(spec, status, raw) {
			// The expired attempt itself is a completed round trip;
			// record it before retrying with a fresh token.
			s.record(spec.Name, elapsed, true, int64(len(raw)))
			if err := s.refreshToken(ctx, spec); err != nil {
				return nil, err
			}
			continue
		}

		body, failed := classify(spec, status, raw)
		s.record(spec.Name, elapsed, !failed, int64(len(raw)))
		return body, nil
	}
}

// needsToken reports whether spec must acquire a live bearer token first.
// Token-generation calls never need one, non-perf environments accept the
// placeholder, and a non-placeholder value means a token is already
// attached.
func (s *Sender) needsToken(spec *tpo.RequestSpec) bool {
	return spec.Kind != tpo.KindTokenGeneration &&
		s.cfg.Environment.RequiresLiveTokens() &&
		spec.BearerToken() == tpo.BearerPlaceholder
}

// refreshToken synchronously obtains a fresh bearer token for spec's vendor
// through the same pipeline and attaches it. Token-generation requests are
// themselves never eligible for refresh, so this cannot recurse.
func (s *Sender) refreshToken(ctx context.Context, spec *tpo.RequestSpec) error {
	tokenSpec, err := s.builder.Build(tpo.KindTokenGeneration, tpo.WithVendor(spec.Vendor))
	if err != nil {
		return fmt.Errorf("building token request for %s: %w", spec.Vendor.Vendor, err)
	}

	body, err := s.Send(ctx, tokenSpec)
	if err != nil {
		return err
	}

	// A missing token was already classified as a failed token call; the
	// degenerate bearer below is still attached so the original request
	// proceeds (and fails visibly) instead of looping on refresh.
	token, _ := body.Token()
	bearer := "Bearer " + token
	spec.SetBearerToken(bearer)
	if s.cfg.UseGlobalTokens {
		spec.Vendor.SetBearerToken(bearer)
	}
	return nil
}

// issue performs the HTTP round trip described by spec.
func (s *Sender) issue(ctx context.Context, spec *tpo.RequestSpec) (int, []byte, error) {
	var bodyReader io.Reader
	if spec.Body != "" {
		bodyReader = strings.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// tokenExpired detects the implementation-specific token-expiry signal.
// Token-generation responses are never treated as expired.
func tokenExpired(spec *tpo.RequestSpec, status int, raw []byte) bool {
	if spec.Kind == tpo.KindTokenGeneration {
		return false
	}
	text := string(raw)
	if strings.Contains(text, expiredTokenText) || strings.Contains(text, invalidTokenText) {
		return true
	}
	// The uber implementation signals expiry with a bare 500 and no body.
	return spec.Vendor.Implementation == tpo.ImplementationUber &&
		status == http.StatusInternalServerError && len(raw) == 0
}

// classify parses the response body and decides whether the call failed.
// Token-generation calls fail when the body carries no non-empty string
// token (the same check Body.Token applies); everything else fails when the
// status is outside the request's success-code set. A body that isn't valid
// JSON is both a fallback document and a failure.
func classify(spec *tpo.RequestSpec, status int, raw []byte) (Body, bool) {
	var body Body
	parseFailed := json.Unmarshal(raw, &body) != nil || body == nil
	if parseFailed {
		body = Body{"code": status, "text": string(raw)}
	}

	if spec.Kind == tpo.KindTokenGeneration {
		token := gjson.GetBytes(raw, "token")
		hasToken := !parseFailed && token.Type == gjson.String && token.Str != ""
		return body, parseFailed || !hasToken
	}
	return body, parseFailed || !spec.IsSuccess(status)
}

func (s *Sender) record(name string, duration time.Duration, success bool, bytes int64) {
	if s.recorder != nil {
		s.recorder.Record(name, duration, success, bytes)
	}
}
