package apitest

import (
	"net/url"
	"sort"

	"github.com/tripsuite/booking-contract-tests/auth"
	"github.com/tripsuite/booking-contract-tests/client"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// AuthMode says what Authorization header a case sends.
type AuthMode string

const (
	// AuthNone sends no Authorization header.
	AuthNone AuthMode = "none"
	// AuthToken sends the configured bearer token.
	AuthToken AuthMode = "token"
	// AuthInvalid sends a bearer value that is not a token at all.
	AuthInvalid AuthMode = "invalid"
)

// Case is one request/expectation pair, plus the metadata that chains it to other cases in
// the same suite.
type Case struct {
	Name   string            `json:"name"`
	Method string            `json:"method,omitempty" jsonschema:"enum=GET,enum=POST,enum=PUT,enum=PATCH,enum=DELETE"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query,omitempty"`
	Auth   AuthMode          `json:"auth,omitempty" jsonschema:"enum=none,enum=token,enum=invalid"`
	// Token is sent as the bearer token instead of the configured one.
	Token        string        `json:"token,omitempty"`
	OmitClientID bool          `json:"omit_client_id,omitempty"`
	Body         ldvalue.Value `json:"body,omitempty"`
	// Expect lists acceptable statuses such as "201" or "4xx"; the default is any 2xx.
	Expect StatusList `json:"expect,omitempty"`
	// Capture maps variable names to dotted paths in the response body. An empty path or "."
	// captures the whole body.
	Capture map[string]string `json:"capture,omitempty"`
	// Requires names variables that must have been captured for this case to run. Variables
	// used in {{placeholders}} are required implicitly.
	Requires []string `json:"requires,omitempty"`
	// Assert holds boolean expressions evaluated against the response.
	Assert []string   `json:"assert,omitempty"`
	Probe  *ProbeSpec `json:"probe,omitempty"`
}

// ProbeSpec turns a case into a rate-limit probe.
type ProbeSpec struct {
	Count           int                 `json:"count,omitempty" jsonschema:"minimum=1"`
	DelayMS         ldvalue.OptionalInt `json:"delay_ms,omitempty"`
	ExpectLimit     int                 `json:"expect_limit,omitempty" jsonschema:"minimum=0"`
	RejectionStatus int                 `json:"rejection_status,omitempty"`
}

// Suite is an ordered list of cases run against one service.
type Suite struct {
	// Name defaults to the service name.
	Name    string `json:"name,omitempty"`
	Service string `json:"service"`
	Cases   []Case `json:"cases"`
}

func (c Case) authMode() AuthMode {
	if c.Auth == "" {
		return AuthNone
	}
	return c.Auth
}

// requiredVars returns the explicitly required variables followed by those used in
// placeholders, without duplicates.
func (c Case) requiredVars() []string {
	seen := make(map[string]bool)
	var ret []string
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				ret = append(ret, n)
			}
		}
	}
	add(c.Requires...)
	add(placeholders(c.Path)...)
	keys := make([]string, 0, len(c.Query))
	for k := range c.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(placeholders(c.Query[k])...)
	}
	add(valuePlaceholders(c.Body)...)
	if c.Token != "" {
		add(placeholders(c.Token)...)
	}
	return ret
}

// buildRequest resolves placeholders and turns the case into a client request. It must only
// be called once requiredVars are all defined.
func (c Case) buildRequest(vars *Vars, expect client.Expectation) client.Request {
	req := client.Request{
		Method:       c.Method,
		Path:         vars.substitutePath(c.Path),
		Body:         vars.substituteValue(c.Body),
		OmitClientID: c.OmitClientID,
		Expect:       expect,
	}
	if len(c.Query) > 0 {
		req.Query = url.Values{}
		for k, v := range c.Query {
			req.Query.Set(k, vars.substitute(v))
		}
	}
	switch c.authMode() {
	case AuthToken:
		req.Auth = true
	case AuthInvalid:
		req.Token = auth.InvalidToken
	}
	if c.Token != "" {
		req.Token = vars.substitute(c.Token)
	}
	return req
}
