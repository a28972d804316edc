package budget

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LimitType distinguishes quota exhaustion from a temporarily overloaded service.
type LimitType string

const (
	LimitTypeRate        LimitType = "rate"
	LimitTypeUnavailable LimitType = "unavailable"
)

// RateLimitInfo contains parsed retry details from a model service error.
type RateLimitInfo struct {
	DetectedAt time.Time
	ResetAt    time.Time // zero when the service gave no hint
	LimitType  LimitType
	RawMessage string
}

// TimeUntilReset calculates duration until the service asked us to retry.
func (r *RateLimitInfo) TimeUntilReset() time.Duration {
	if r.ResetAt.IsZero() {
		return 0
	}
	return time.Until(r.ResetAt)
}

// IsExpired checks if the retry hint has already passed.
func (r *RateLimitInfo) IsExpired() bool {
	if r.ResetAt.IsZero() {
		return true
	}
	return time.Now().After(r.ResetAt)
}

var (
	// "retry in 30 seconds", "retry after 12s", "Please retry in 7.5s"
	retrySecondsPattern = regexp.MustCompile(`(?i)retry (?:in|after)\s+(\d+(?:\.\d+)?)\s*(?:seconds?|s)\b`)

	// "retryDelay": "21s" in Gemini error details
	retryDelayPattern = regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`)

	rateLimitIndicator   = regexp.MustCompile(`(?i)(rate.?limit|resource.?exhausted|quota|too.?many.?requests|\b429\b)`)
	unavailableIndicator = regexp.MustCompile(`(?i)(\b503\b|\bUNAVAILABLE\b|overloaded|\b502\b|\b504\b|service unavailable)`)
)

// ParseRateLimitFromError parses retry info from a model service error
// message. It returns nil when the error is not transient.
func ParseRateLimitFromError(errMsg string) *RateLimitInfo {
	if strings.TrimSpace(errMsg) == "" {
		return nil
	}

	info := &RateLimitInfo{DetectedAt: time.Now(), RawMessage: errMsg}
	switch {
	case rateLimitIndicator.MatchString(errMsg):
		info.LimitType = LimitTypeRate
	case unavailableIndicator.MatchString(errMsg):
		info.LimitType = LimitTypeUnavailable
	default:
		return nil
	}

	for _, p := range []*regexp.Regexp{retryDelayPattern, retrySecondsPattern} {
		if m := p.FindStringSubmatch(errMsg); len(m) > 1 {
			if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
				info.ResetAt = info.DetectedAt.Add(time.Duration(secs * float64(time.Second)))
				break
			}
		}
	}
	return info
}
