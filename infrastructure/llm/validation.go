package llm

import (
	"cmp"
	"fmt"
	"net/url"
	"time"
)

// Parameter ranges shared by the providers.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinPenalty     = -2.0
	MaxPenalty     = 2.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
)

// IsValidTemperature reports whether val lies in [MinTemperature, MaxTemperature].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP reports whether val lies in [MinTopP, MaxTopP].
func IsValidTopP(val float64) bool { return val >= MinTopP && val <= MaxTopP }

// IsPositiveInt reports whether val is greater than zero.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString reports whether val is not empty.
func IsNonEmptyString(val string) bool { return val != "" }

// ValidateBaseURL checks that baseURL is an absolute http(s) URL and
// returns its normalized form. An empty string selects the provider
// default and is valid.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// ValidateTimeout clamps timeout to [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning "use the SDK default".
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return Clamp(timeout, MinTimeout, MaxTimeout)
}

// SafeFloat32 converts a numeric option value to float32, reporting false
// for non-numeric values and values outside float32 range.
func SafeFloat32(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		if v > 3.4e38 || v < -3.4e38 {
			return 0, false
		}
		return float32(v), true
	case int:
		return float32(v), true
	default:
		return 0, false
	}
}

// Clamp restricts val to [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return min(max(val, lo), hi)
}
