// Package svcerr provides user-friendly, operational (Go-level) errors for
// the simulator's startup and configuration paths. CIP and encapsulation
// status codes are wire-level values, not Go errors, and live in
// internal/cip and internal/enip instead.
package svcerr

import (
	"fmt"
	"strings"
)

// UserFriendlyError carries a short message plus optional context shown to
// the operator running the CLI.
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapBindError wraps a listener bind failure.
func WrapBindError(err error, listenIP string, port int) error {
	if err == nil {
		return nil
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to bind listener on %s:%d", listenIP, port),
		Reason:  extractBindReason(err),
		Hint:    "Another process may already be listening on this port, or the address may not be assignable",
		Try:     fmt.Sprintf("lsof -i :%d", port),
		Err:     err,
	}
}

// WrapConfigError wraps a configuration load/validation failure.
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Check server/identity/tags/session sections against the default config",
		Try:     fmt.Sprintf("move %s aside and rerun with --config %s to write a fresh default config", configPath, configPath),
		Err:     err,
	}
}

// WrapPcapError wraps a diagnostics pcap writer failure.
func WrapPcapError(err error, path string) error {
	if err == nil {
		return nil
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to open pcap output %s", path),
		Reason:  err.Error(),
		Hint:    "Check that the directory exists and is writable",
		Err:     err,
	}
}

func extractBindReason(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "address already in use"):
		return "Port already in use by another process"
	case strings.Contains(errStr, "permission denied"):
		return "Insufficient privileges to bind this port"
	case strings.Contains(errStr, "cannot assign requested address"):
		return "The listen address is not assignable on this host"
	default:
		return "Listener bind failed"
	}
}
