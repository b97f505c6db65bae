// Package client sends requests to the services under test and normalizes the outcome of
// each one into a Result, whatever went wrong at the transport or HTTP level.
package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const ClientIDHeader = "X-Client-ID"

// Config holds the request settings shared by every call to one service.
type Config struct {
	Token    string
	ClientID string
	Timeout  time.Duration
	// HTTPClient is optional; if nil, a client with Timeout is created.
	HTTPClient *http.Client
}

// Client executes requests against a single ServiceEndpoint.
type Client struct {
	endpoint servicedef.ServiceEndpoint
	config   Config
	http     *http.Client
}

func New(endpoint servicedef.ServiceEndpoint, config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{endpoint: endpoint, config: config, http: httpClient}
}

func (c *Client) Endpoint() servicedef.ServiceEndpoint {
	return c.endpoint
}

// HasToken reports whether a bearer token is configured.
func (c *Client) HasToken() bool {
	return c.config.Token != ""
}

// Execute performs one request. It never returns an error: every kind of failure is
// described by the Result. Progress is written to logger, which may be nil.
func (c *Client) Execute(ctx context.Context, req Request, logger framework.Logger) Result {
	if logger == nil {
		logger = framework.NullLogger()
	}

	target := c.endpoint.URL(req.Path)
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	result := Result{Method: req.method(), URL: target, Body: ldvalue.Null()}

	var bodyText string
	var bodyReader io.Reader
	if !req.Body.IsNull() {
		bodyText = req.Body.JSONString()
		bodyReader = strings.NewReader(bodyText)
	}

	httpReq, err := http.NewRequestWithContext(ctx, result.Method, target, bodyReader)
	if err != nil {
		result.Failure = InvalidRequest
		result.ErrorMessage = fmt.Sprintf("cannot build request: %s", err)
		logger.Printf("%s", result.ErrorMessage)
		return result
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := c.tokenFor(req); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if c.config.ClientID != "" && !req.OmitClientID {
		httpReq.Header.Set(ClientIDHeader, c.config.ClientID)
	}
	result.TraceParent = createTraceParent()
	httpReq.Header.Set("Traceparent", result.TraceParent)
	result.Curl = renderCurl(httpReq, bodyText)
	logger.Printf("Request: %s", result.Curl)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		result.Duration = time.Since(start)
		return c.transportFailure(result, err, logger)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	result.Duration = time.Since(start)
	result.StatusCode = resp.StatusCode
	if err != nil {
		return c.transportFailure(result, err, logger)
	}
	result.Text = string(data)
	logger.Printf("Response: status %d in %s, body: %s", resp.StatusCode, result.Duration, result.Text)

	if err := parseBody(&result, data, resp.Header.Get("Content-Type")); err != nil {
		result.Failure = MalformedBody
		result.ErrorMessage = fmt.Sprintf("malformed JSON response body (status %d): %s", resp.StatusCode, err)
		logger.Printf("%s (trace ID: %s)", result.ErrorMessage, extractTraceID(result.TraceParent))
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Detail = extractDetail(result.Body, result.Text)
	}

	result.Pass = req.Expect.Matches(resp.StatusCode)
	if !result.Pass {
		result.ErrorMessage = fmt.Sprintf("expected status %s, got %d", req.Expect, resp.StatusCode)
		if result.Detail != "" {
			result.ErrorMessage += ": " + result.Detail
		}
		logger.Printf("Unexpected status: %s (trace ID: %s)", result.ErrorMessage, extractTraceID(result.TraceParent))
	}
	return result
}

func (c *Client) tokenFor(req Request) string {
	if req.Token != "" {
		return req.Token
	}
	if req.Auth {
		return c.config.Token
	}
	return ""
}

func (c *Client) transportFailure(result Result, err error, logger framework.Logger) Result {
	result.Failure = classifyTransportError(err)
	result.ErrorMessage = describeTransportError(result.Failure, c.endpoint.Name, c.endpoint.BaseURL, err)
	result.Pass = false
	logger.Printf("%s (trace ID: %s)", result.ErrorMessage, extractTraceID(result.TraceParent))
	return result
}

// parseBody fills in Body. It returns an error only if the response claimed to be JSON but
// could not be parsed; other unparseable bodies are kept as plain text.
func parseBody(result *Result, data []byte, contentType string) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var v ldvalue.Value
	err := json.Unmarshal(data, &v)
	if err == nil {
		result.Body = v
		return nil
	}
	if isJSONContentType(contentType) {
		return err
	}
	result.Body = ldvalue.String(string(data))
	return nil
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// extractDetail finds a human-readable error message in a response body.
func extractDetail(body ldvalue.Value, text string) string {
	if body.Type() == ldvalue.ObjectType {
		if d := body.GetByKey("detail"); !d.IsNull() {
			if d.IsString() {
				return d.StringValue()
			}
			return d.JSONString()
		}
	}
	return strings.TrimSpace(text)
}

func createTraceParent() string {
	traceID := make([]byte, 16)
	spanID := make([]byte, 8)
	_, _ = rand.Read(traceID)
	_, _ = rand.Read(spanID)
	return fmt.Sprintf("00-%s-%s-01", hex.EncodeToString(traceID), hex.EncodeToString(spanID))
}

func extractTraceID(traceParent string) string {
	parts := strings.Split(traceParent, "-")
	if len(parts) >= 2 {
		return parts[1]
	}
	return traceParent
}
