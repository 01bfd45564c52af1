package ratelimit

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
)

// DefaultRetryDelay is used when a failure is recognized as a rate
// limit but carries no parseable delay.
const DefaultRetryDelay = 5 * time.Minute

// delayPattern is one recognized delay signature. Patterns are tested
// in declaration order; the first match wins.
type delayPattern struct {
	re    *regexp.Regexp
	parse func(m []string) time.Duration
}

var delayPatterns = []delayPattern{
	// "10m0s"
	{
		re: regexp.MustCompile(`(?i)(\d+)m(\d+)s`),
		parse: func(m []string) time.Duration {
			mins, _ := strconv.Atoi(m[1])
			secs, _ := strconv.Atoi(m[2])
			return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
		},
	},
	// "10m"
	{
		re: regexp.MustCompile(`(?i)(\d+)m(?:[^a-z0-9]|$)`),
		parse: func(m []string) time.Duration {
			mins, _ := strconv.Atoi(m[1])
			return time.Duration(mins) * time.Minute
		},
	},
	// "30s"
	{
		re: regexp.MustCompile(`(?i)(\d+)s(?:[^a-z0-9]|$)`),
		parse: func(m []string) time.Duration {
			secs, _ := strconv.Atoi(m[1])
			return time.Duration(secs) * time.Second
		},
	},
	// "retry after 120 seconds"
	{
		re: regexp.MustCompile(`(?i)retry after (\d+) seconds?`),
		parse: func(m []string) time.Duration {
			secs, _ := strconv.Atoi(m[1])
			return time.Duration(secs) * time.Second
		},
	},
	// "retry-after: 120"
	{
		re: regexp.MustCompile(`(?i)retry-after:\s*(\d+)`),
		parse: func(m []string) time.Duration {
			secs, _ := strconv.Atoi(m[1])
			return time.Duration(secs) * time.Second
		},
	},
}

// rateLimitSignatures recognize rate limiting independent of delay
// parsing. -32005 is the JSON-RPC "limit exceeded" code providers emit.
var rateLimitSignatures = []string{
	"rate limit",
	"too many requests",
	"throttl",
	"quota exceeded",
	"429",
	"-32005",
}

// Classify maps an opaque upstream failure into rate-limit information.
// A parseable delay signature implies a rate limit with that exact
// delay. A broad signature without a delay yields DefaultRetryDelay and
// a warning. Anything else is not a rate limit.
func Classify(err error) domain.RateLimitInfo {
	if err == nil {
		return domain.RateLimitInfo{}
	}

	text := err.Error()

	for _, p := range delayPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return domain.RateLimitInfo{
				IsRateLimit: true,
				RetryDelay:  p.parse(m),
			}
		}
	}

	lower := strings.ToLower(text)
	for _, sig := range rateLimitSignatures {
		if strings.Contains(lower, sig) {
			slog.Warn("Rate limit detected without parseable delay, using default",
				"error", text,
				"delay", DefaultRetryDelay)
			return domain.RateLimitInfo{
				IsRateLimit: true,
				RetryDelay:  DefaultRetryDelay,
			}
		}
	}

	return domain.RateLimitInfo{}
}
