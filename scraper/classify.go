package scraper

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/debugsito/scrap-sunat/models"
)

// FatalError marks a structural failure (missing controls, unfillable field) that is not retried
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// connectionSignatures are substrings of network-level failures reported by Chromium and the CDP client
var connectionSignatures = []string{
	"err_connection_reset",
	"net::",
	"connection reset by peer",
	"connection refused",
	"broken pipe",
}

// IsConnectionError reports whether err looks like a transient network failure
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range connectionSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// classify turns an error escaping the state machine into a terminal outcome
func classify(err error) models.Outcome {
	if IsConnectionError(err) {
		return models.ConnectionFailure(fmt.Sprintf("Error de conexión: %v", err))
	}
	return models.FatalFailure(fmt.Sprintf("Error: %v", err))
}
