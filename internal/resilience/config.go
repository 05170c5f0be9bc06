package resilience

import (
	"time"

	"github.com/sells-group/gridlink/internal/config"
)

// FromFetchConfig derives the retry and breaker policies for remote sources.
// Zero values fall back to the package defaults.
func FromFetchConfig(cfg config.FetchConfig) (RetryConfig, BreakerConfig) {
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	breaker := DefaultBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerResetSecs > 0 {
		breaker.ResetTimeout = time.Duration(cfg.BreakerResetSecs) * time.Second
	}
	return retry, breaker
}
