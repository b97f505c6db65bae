package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

func classifyTransportError(err error) FailureKind {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefused
	case errors.As(err, &dnsErr):
		return DNSFailure
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return Timeout
	default:
		return ConnectionError
	}
}

func describeTransportError(kind FailureKind, serviceName, baseURL string, err error) string {
	switch kind {
	case ConnectionRefused:
		return fmt.Sprintf("connection refused: is the %s service running at %s?", serviceName, baseURL)
	case DNSFailure:
		return fmt.Sprintf("DNS lookup failed for %s: %s", baseURL, err)
	case Timeout:
		return fmt.Sprintf("request timed out: %s", err)
	default:
		return fmt.Sprintf("network error: %s", err)
	}
}
