package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const serviceInfoRetryInterval = time.Millisecond * 100

// ServiceInfo is what a booking service reports about itself at its root path. The
// services are not consistent about this, so every field is optional.
type ServiceInfo struct {
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Message   string        `json:"message"`
	Endpoints ldvalue.Value `json:"endpoints"`
}

func (s ServiceInfo) Description() string {
	switch {
	case s.Service != "" && s.Version != "":
		return fmt.Sprintf("%s %s", s.Service, s.Version)
	case s.Service != "":
		return s.Service
	default:
		return s.Message
	}
}

// QueryServiceInfo polls a path on the service until it answers or the timeout expires.
// Connection errors are retried, since the service may still be starting; an HTTP error
// status is not.
func (c *Client) QueryServiceInfo(ctx context.Context, path string, timeout time.Duration, output io.Writer) (ServiceInfo, error) {
	url := c.endpoint.URL(path)
	fmt.Fprintf(output, "Connecting to %s service at %s", c.endpoint.Name, url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		info, retry, err := c.queryServiceInfoOnce(ctx, url)
		if !retry {
			fmt.Fprintln(output)
			if err == nil {
				fmt.Fprintf(output, "  %s is up: %s\n", c.endpoint.Name, info.Description())
			}
			return info, err
		}
		if !time.Now().Before(deadline) {
			fmt.Fprintln(output)
			return ServiceInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(output)
			return ServiceInfo{}, ctx.Err()
		case <-time.After(serviceInfoRetryInterval):
		}
	}
}

func (c *Client) queryServiceInfoOnce(ctx context.Context, url string) (ServiceInfo, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ServiceInfo{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.ClientID != "" {
		req.Header.Set(ClientIDHeader, c.config.ClientID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ServiceInfo{}, true, fmt.Errorf("%s: %w", classifyTransportError(err), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ServiceInfo{}, true, err
	}
	if resp.StatusCode != http.StatusOK {
		return ServiceInfo{}, false, fmt.Errorf("%s service returned status code %d", c.endpoint.Name, resp.StatusCode)
	}
	var info ServiceInfo
	if len(data) == 0 {
		return info, false, nil
	}
	if err := json.Unmarshal(data, &info); err != nil {
		// /docs and similar paths answer with HTML, which still proves the service is up
		return ServiceInfo{Message: "service is running"}, false, nil
	}
	return info, false, nil
}
