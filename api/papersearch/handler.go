// Package papersearch implements the request entry point (C9): parsing
// and validating the inbound API Gateway event, invoking the ranking
// pipeline, and mapping its outcome to an HTTP response.
package papersearch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/dantee-nv/paper-search/lib/logger"
	"github.com/dantee-nv/paper-search/lib/paper"
	"github.com/dantee-nv/paper-search/lib/response"
)

type searchRequest struct {
	Context string      `json:"context"`
	K       interface{} `json:"k"`
}

// extractRequestID prefers requestContext.requestId, falling back to a
// freshly generated id when the event carries none.
func extractRequestID(req events.APIGatewayV2HTTPRequest) string {
	if req.RequestContext.RequestID != "" {
		return req.RequestContext.RequestID
	}
	return logger.NewRequestID()
}

// extractSourceIP prefers requestContext.http.sourceIp, then falls back
// to "unknown" — there is no identity.sourceIp equivalent in the v2
// event shape, so that middle fallback from the source this was
// distilled from collapses into this one step.
func extractSourceIP(req events.APIGatewayV2HTTPRequest) string {
	if ip := req.RequestContext.HTTP.SourceIP; ip != "" {
		return ip
	}
	return "unknown"
}

func decodeBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

// defaultK is the page size used when the request omits k entirely
// (§4.9.4: "k defaults to 10").
const defaultK = 10

// validate applies the payload rules from §4.2/§4.9.4: context is
// whitespace-collapsed and trimmed, must be non-empty, and must not
// exceed maxContextChars characters; k (if present) must be a JSON
// number, is truncated to an integer, defaults to min(10, maxK) and is
// clamped into [1, maxK]. Booleans and every other JSON type are
// rejected for k.
func validate(raw searchRequest, maxK, maxContextChars int) (string, int, *paper.Error) {
	normalizedContext := strings.Join(strings.Fields(raw.Context), " ")
	if normalizedContext == "" {
		return "", 0, &paper.Error{Kind: paper.KindInvalidPayload, Err: errInvalidPayload("context is required.")}
	}
	if len([]rune(normalizedContext)) > maxContextChars {
		return "", 0, &paper.Error{Kind: paper.KindInvalidPayload, Err: errInvalidPayload(fmt.Sprintf("context must be %d characters or fewer.", maxContextChars))}
	}

	k := defaultK
	if k > maxK {
		k = maxK
	}
	if raw.K != nil {
		switch v := raw.K.(type) {
		case bool:
			return "", 0, &paper.Error{Kind: paper.KindInvalidPayload, Err: errInvalidPayload("k must be a number.")}
		case float64:
			k = int(v)
		default:
			return "", 0, &paper.Error{Kind: paper.KindInvalidPayload, Err: errInvalidPayload("k must be a number.")}
		}
	}

	if k < 1 {
		k = 1
	}
	if k > maxK {
		k = maxK
	}

	return normalizedContext, k, nil
}

type payloadError string

func (e payloadError) Error() string { return string(e) }

func errInvalidPayload(msg string) error { return payloadError(msg) }

// statusForKind maps the typed error taxonomy to an HTTP status and a
// generic client-facing message, per §7. KindInvalidPayload carries its
// own field-specific message instead — see responseForError.
func statusForKind(kind paper.Kind) (int, string) {
	switch kind {
	case paper.KindInvalidJSON:
		return 400, "Invalid JSON payload."
	case paper.KindInvalidPayload:
		return 400, "invalid request payload"
	case paper.KindNotConfigured:
		return 500, "Service is not configured."
	case paper.KindRateLimitInternal:
		return 500, "Rate limiting service is unavailable."
	case paper.KindRateLimitExceeded:
		return 429, "Too many requests. Please try again shortly."
	case paper.KindCircuitOpen:
		return 503, "upstream search is temporarily unavailable"
	case paper.KindUpstreamRateLimited:
		return 503, "upstream search is rate limiting this service"
	case paper.KindUpstreamRequestError:
		return 502, "upstream search request failed"
	default:
		return 500, "internal error"
	}
}

// responseForError resolves a *paper.Error to its HTTP status and
// client-facing message, preferring the error's own message for kinds
// that carry a field-specific one (§8.3 requires context validation
// errors to read exactly "context is required.", for example).
func responseForError(pe *paper.Error) (int, string) {
	status, generic := statusForKind(pe.Kind)
	if pe.Kind == paper.KindInvalidPayload && pe.Err != nil {
		return status, pe.Err.Error()
	}
	return status, generic
}

// Handle is the full request lifecycle for a single invocation.
func Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	services, err := paper.GetServices(ctx)
	if err != nil {
		logger.Error("failed to initialize services", err, mergeFields(logger.Log.WithFields(extractRequestID(req), extractSourceIP(req), req.RawPath), map[string]interface{}{"kind": string(paper.KindInternal)}))
		return response.Error(500, "internal error"), nil
	}
	return handleWithServices(ctx, req, services)
}

// handleWithServices is Handle with its Services dependency injected,
// split out so tests can exercise the full request lifecycle against
// fakes instead of the real AWS-backed singleton.
func handleWithServices(ctx context.Context, req events.APIGatewayV2HTTPRequest, services *paper.Services) (events.APIGatewayV2HTTPResponse, error) {
	start := time.Now()
	requestID := extractRequestID(req)
	sourceIP := extractSourceIP(req)
	fields := logger.Log.WithFields(requestID, sourceIP, req.RawPath)

	body, err := decodeBody(req)
	if err != nil {
		logger.Warn("failed to decode request body", mergeFields(fields, map[string]interface{}{"kind": string(paper.KindInvalidJSON)}))
		return response.Error(400, "Invalid JSON payload."), nil
	}

	var raw searchRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		logger.Warn("failed to parse request body", mergeFields(fields, map[string]interface{}{"kind": string(paper.KindInvalidJSON)}))
		return response.Error(400, "Invalid JSON payload."), nil
	}

	searchContext, k, verr := validate(raw, services.Settings.MaxK, services.Settings.MaxContextChars)
	if verr != nil {
		status, msg := responseForError(verr)
		logger.Warn("invalid request payload", mergeFields(fields, map[string]interface{}{"kind": string(verr.Kind)}))
		return response.Error(status, msg), nil
	}

	if !services.Settings.Configured() {
		logger.Error("service is missing required table configuration", nil, mergeFields(fields, map[string]interface{}{"kind": string(paper.KindNotConfigured)}))
		return response.Error(500, "Service is not configured."), nil
	}

	allowed, err := services.Limiter.Allow(ctx, sourceIP, services.Settings.RateLimitPerMinute)
	if err != nil {
		logger.Error("rate limiter check failed", err, mergeFields(fields, map[string]interface{}{"kind": string(paper.KindRateLimitInternal)}))
		return response.Error(500, "Rate limiting service is unavailable."), nil
	}
	if !allowed {
		logger.Warn("rate limit exceeded", mergeFields(fields, map[string]interface{}{"kind": string(paper.KindRateLimitExceeded)}))
		return response.Error(429, "Too many requests. Please try again shortly."), nil
	}

	result, err := paper.Rank(ctx, services.Upstream, services.Embedder, services.Cache, searchContext, paper.RankParams{
		CandidateLimit:      services.Settings.CandidateLimit,
		PaperEmbeddingTTL:   services.Settings.PaperEmbeddingTTLDays,
		EmbeddingMaxWorkers: services.Settings.EmbeddingMaxWorkers,
		K:                   k,
	})
	if err != nil {
		if pe, ok := paper.AsPaperError(err); ok {
			status, msg := responseForError(pe)
			logger.Warn("ranking failed", mergeFields(fields, map[string]interface{}{"kind": string(pe.Kind)}))
			return response.Error(status, msg), nil
		}
		logger.Error("ranking failed with unclassified error", err, mergeFields(fields, map[string]interface{}{"kind": string(paper.KindInternal)}))
		return response.Error(500, "internal error"), nil
	}

	result.Meta.RequestID = requestID
	result.Meta.LatencyMs = time.Since(start).Milliseconds()

	return response.JSON(200, result), nil
}

func mergeFields(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
