package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var (
	// ErrFatalAPI marks provider errors that retrying or continuing cannot fix
	// (bad credentials, exhausted quota, billing).
	ErrFatalAPI = errors.New("fatal API error")

	// ErrInvalidOutput is returned when a model reply does not decode into the
	// configured output type.
	ErrInvalidOutput = errors.New("invalid model output")

	// ErrTypeMismatch is returned when a contextualizer produces a value of the
	// wrong type for its caller.
	ErrTypeMismatch = errors.New("contextualizer output type mismatch")
)

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"accessdenied",
	"access denied",
	"expiredtoken",
}

// statusPattern matches an HTTP 401/403 the way providers print it
// ("HTTP 403", "status code: 401", "StatusCode: 403"), not any bare number.
var statusPattern = regexp.MustCompile(`(?i)\b(?:http|status ?code|status)\W{0,3}40[13]\b`)

// statusCoder is implemented by smithy's ResponseError and the AWS SDK's
// wrapper around it.
type statusCoder interface {
	HTTPStatusCode() int
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return statusPattern.MatchString(msg)
}

// IsFatalAPIError reports whether err was classified as fatal, either already
// wrapped with ErrFatalAPI or recognizable from its message.
func IsFatalAPIError(err error) bool {
	return errors.Is(err, ErrFatalAPI) || isFatalAPIError(err)
}

func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}

// TypeMismatch builds the error returned when a contextualizer result is not a want.
func TypeMismatch(want string, got any) error {
	return fmt.Errorf("%w: expected %s but got %T", ErrTypeMismatch, want, got)
}
