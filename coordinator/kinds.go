package coordinator

import (
	"fmt"
	"time"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/core"
)

// Kind names a background computation.
type Kind string

const (
	KindRecommendations Kind = "recommendations"
	KindEmbedding       Kind = "embedding"
	KindBookSummary     Kind = "book_summary"
	KindTextSummary     Kind = "text_summary"
	KindAuthorDetail    Kind = "author_detail"
)

// Kinds lists every computation kind in a stable order.
var Kinds = []Kind{KindRecommendations, KindEmbedding, KindBookSummary, KindTextSummary, KindAuthorDetail}

// resultKeys maps a subject to the cache key its ready result lives under.
var resultKeys = map[Kind]func(subject string) string{
	KindRecommendations: cache.UserRecommendationsKey,
	KindEmbedding:       cache.BookEmbeddingKey,
	KindBookSummary:     cache.BookSummaryKey,
	KindTextSummary:     cache.TextSummaryKey,
	KindAuthorDetail:    cache.AuthorDetailKey,
}

// ResultKey returns the cache key for the result of kind over subject.
func ResultKey(kind Kind, subject string) (string, error) {
	fn, ok := resultKeys[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownKind, kind)
	}
	return fn(subject), nil
}

// KindConfig bounds one computation kind.
type KindConfig struct {
	ResultTTL  time.Duration `koanf:"result_ttl"`
	LockTTL    time.Duration `koanf:"lock_ttl"`
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

type Config struct {
	Recommendations KindConfig `koanf:"recommendations"`
	Embedding       KindConfig `koanf:"embedding"`
	BookSummary     KindConfig `koanf:"book_summary"`
	TextSummary     KindConfig `koanf:"text_summary"`
	AuthorDetail    KindConfig `koanf:"author_detail"`
}

// DefaultLockTTL covers a slow chain of remote calls and still lets a
// crashed worker's lock lapse within minutes.
const DefaultLockTTL = 5 * time.Minute

func DefaultConfig() Config {
	return Config{
		Recommendations: KindConfig{ResultTTL: 6 * time.Hour, LockTTL: DefaultLockTTL, MaxRetries: 2, RetryDelay: 10 * time.Second},
		Embedding:       KindConfig{ResultTTL: 7 * 24 * time.Hour, LockTTL: DefaultLockTTL, MaxRetries: 2, RetryDelay: 30 * time.Second},
		BookSummary:     KindConfig{ResultTTL: 24 * time.Hour, LockTTL: DefaultLockTTL, MaxRetries: 3, RetryDelay: 10 * time.Second},
		TextSummary:     KindConfig{ResultTTL: 6 * time.Hour, LockTTL: DefaultLockTTL, MaxRetries: 2, RetryDelay: 10 * time.Second},
		AuthorDetail:    KindConfig{ResultTTL: 12 * time.Hour, LockTTL: DefaultLockTTL, MaxRetries: 2, RetryDelay: 10 * time.Second},
	}
}

// For returns the settings of kind.
func (c *Config) For(kind Kind) (KindConfig, error) {
	switch kind {
	case KindRecommendations:
		return c.Recommendations, nil
	case KindEmbedding:
		return c.Embedding, nil
	case KindBookSummary:
		return c.BookSummary, nil
	case KindTextSummary:
		return c.TextSummary, nil
	case KindAuthorDetail:
		return c.AuthorDetail, nil
	}
	return KindConfig{}, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind)
}

//nolint:gocritic // Config passed by value
func (c Config) Validate() error {
	for _, kind := range Kinds {
		kc, _ := c.For(kind)
		if kc.ResultTTL <= 0 || kc.LockTTL <= 0 {
			return fmt.Errorf("%w: coordinator.%s ttls must be positive", core.ErrInvalidConfig, kind)
		}
		if kc.MaxRetries < 0 || kc.RetryDelay < 0 {
			return fmt.Errorf("%w: coordinator.%s retries must not be negative", core.ErrInvalidConfig, kind)
		}
	}
	return nil
}
