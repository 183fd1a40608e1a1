package providers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is returned before any network activity when a
// provider has no credential configured.
var ErrMissingCredential = errors.New("provider credential not configured")

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Message)
}

type ErrorType string

const (
	ErrorQuota       ErrorType = "quota"
	ErrorRate        ErrorType = "rate"
	ErrorTransient   ErrorType = "transient"
	ErrorPermanent   ErrorType = "permanent"
	ErrorContext     ErrorType = "context"
	ErrorCredentials ErrorType = "credentials"
)

// ClassifyError buckets a provider failure for the LLM audit log.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingCredential) {
		return ErrorCredentials
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 401 || se.StatusCode == 403:
			return ErrorCredentials
		case se.StatusCode == 429:
			if strings.Contains(strings.ToLower(se.Message), "quota") {
				return ErrorQuota
			}
			return ErrorRate
		case se.StatusCode >= 500:
			return ErrorTransient
		}
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context length"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline exceeded"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}
