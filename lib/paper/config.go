package paper

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Settings holds every tunable from the environment, loaded once per
// process by GetServices and carried in the Services singleton
// thereafter (§3, §5).
type Settings struct {
	UpstreamRegion  string
	EmbedModelID    string
	UpstreamBaseURL string
	UpstreamAPIKey  string
	CacheTable      string
	RateLimitTable  string

	CandidateLimit          int
	MaxContextChars         int
	MaxK                    int
	PaperEmbeddingTTLDays   int
	RateLimitPerMinute      int
	CircuitBreakerThreshold int
	CircuitBreakerOpenSecs  int
	EmbeddingMaxWorkers     int
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback, floor int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if v < floor {
		return floor
	}
	return v
}

// LoadSettings reads env vars with the defaults and floors from §3.
func LoadSettings() Settings {
	s := Settings{
		UpstreamRegion:  envOr("UPSTREAM_REGION", "us-east-1"),
		EmbedModelID:    envOr("EMBED_MODEL_ID", "amazon.titan-embed-text-v2:0"),
		UpstreamBaseURL: envOr("UPSTREAM_BASE_URL", "https://api.semanticscholar.org/graph/v1/paper/search"),
		UpstreamAPIKey:  os.Getenv("UPSTREAM_API_KEY"),
		CacheTable:      os.Getenv("EMBEDDING_CACHE_TABLE"),
		RateLimitTable:  os.Getenv("RATE_LIMIT_TABLE"),

		CandidateLimit:           envIntOr("CANDIDATE_LIMIT", 100, 1),
		MaxContextChars:          envIntOr("MAX_CONTEXT_CHARS", 8000, 200),
		MaxK:                     envIntOr("MAX_K", 10, 1),
		PaperEmbeddingTTLDays:    envIntOr("PAPER_EMBEDDING_TTL_DAYS", 30, 1),
		RateLimitPerMinute:       envIntOr("RATE_LIMIT_PER_MINUTE", 20, 1),
		CircuitBreakerThreshold:  envIntOr("CIRCUIT_BREAKER_THRESHOLD", 3, 1),
		CircuitBreakerOpenSecs:   envIntOr("CIRCUIT_BREAKER_OPEN_SECONDS", 30, 5),
		EmbeddingMaxWorkers:      envIntOr("EMBEDDING_MAX_WORKERS", 6, 1),
	}
	if s.CandidateLimit > 100 {
		s.CandidateLimit = 100
	}
	return s
}

// Configured reports whether the two DynamoDB tables this service
// depends on are set. The handler maps a false result to a 500
// NotConfigured response rather than failing downstream calls opaquely.
func (s Settings) Configured() bool {
	return s.CacheTable != "" && s.RateLimitTable != ""
}

// Services is the per-process singleton container: one embedding
// client, one upstream client (with its circuit breaker), one rate
// limiter, one cache, all built once and reused across invocations, the
// way the teacher's GetEmbeddingService/GetVectorDBCache reuse a single
// instance rather than reconnecting per request.
type Services struct {
	Settings Settings
	Embedder Embedder
	Upstream Searcher
	Cache    Cache
	Limiter  RateLimiterAPI
	breaker  *CircuitBreaker
}

// RateLimiterAPI is what the handler needs from the rate limiter,
// abstracted the same way Searcher/Embedder/Cache are so a handler test
// can inject a fake without a DynamoDB table behind it.
type RateLimiterAPI interface {
	Allow(ctx context.Context, sourceIP string, perMinuteLimit int) (bool, error)
}

var (
	servicesOnce sync.Once
	services     *Services
	servicesErr  error
)

// GetServices builds the Services singleton on first call and returns
// the same instance on every subsequent call within the process.
func GetServices(ctx context.Context) (*Services, error) {
	servicesOnce.Do(func() {
		services, servicesErr = newServices(ctx)
	})
	return services, servicesErr
}

func newServices(ctx context.Context) (*Services, error) {
	settings := LoadSettings()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.UpstreamRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	db := dynamodb.NewFromConfig(cfg)
	breaker := NewCircuitBreaker(settings.CircuitBreakerThreshold, settings.CircuitBreakerOpenSecs)

	return &Services{
		Settings: settings,
		Embedder: NewEmbeddingClient(cfg, settings.EmbedModelID),
		Upstream: NewSemanticScholarClient(settings.UpstreamBaseURL, settings.UpstreamAPIKey, breaker),
		Cache:    NewEmbeddingCache(db, settings.CacheTable),
		Limiter:  NewRateLimiter(db, settings.RateLimitTable),
		breaker:  breaker,
	}, nil
}
