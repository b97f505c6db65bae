package client

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Request describes one HTTP call to a service under test.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is sent as JSON text if it is not null.
	Body ldvalue.Value
	// Auth says whether to send the configured bearer token.
	Auth bool
	// Token, if set, is sent instead of the configured token even when Auth is false.
	Token string
	// OmitClientID suppresses the X-Client-ID header for this request.
	OmitClientID bool
	Expect       Expectation
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Expectation is the set of status codes that count as a pass. A zero Expectation accepts any
// 2xx status.
type Expectation struct {
	Statuses []int
	// Classes holds status classes by their first digit, so 4 means any 4xx status.
	Classes []int
}

// ExpectStatus returns an Expectation that accepts exactly the given statuses.
func ExpectStatus(statuses ...int) Expectation {
	return Expectation{Statuses: statuses}
}

// ExpectClass returns an Expectation that accepts any status in the given classes.
func ExpectClass(classes ...int) Expectation {
	return Expectation{Classes: classes}
}

// ParseExpectation parses values such as "201" or "4xx".
func ParseExpectation(values []string) (Expectation, error) {
	var e Expectation
	for _, v := range values {
		s := strings.ToLower(strings.TrimSpace(v))
		if len(s) == 3 && strings.HasSuffix(s, "xx") && s[0] >= '1' && s[0] <= '5' {
			e.Classes = append(e.Classes, int(s[0]-'0'))
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 100 || n > 599 {
			return Expectation{}, fmt.Errorf("invalid expected status %q", v)
		}
		e.Statuses = append(e.Statuses, n)
	}
	return e, nil
}

func (e Expectation) IsDefault() bool {
	return len(e.Statuses) == 0 && len(e.Classes) == 0
}

// Matches reports whether a status satisfies the expectation.
func (e Expectation) Matches(status int) bool {
	if e.IsDefault() {
		return status >= 200 && status < 300
	}
	for _, s := range e.Statuses {
		if s == status {
			return true
		}
	}
	for _, c := range e.Classes {
		if status/100 == c {
			return true
		}
	}
	return false
}

func (e Expectation) String() string {
	if e.IsDefault() {
		return "2xx"
	}
	var parts []string
	statuses := append([]int(nil), e.Statuses...)
	sort.Ints(statuses)
	for _, s := range statuses {
		parts = append(parts, strconv.Itoa(s))
	}
	for _, c := range e.Classes {
		parts = append(parts, fmt.Sprintf("%dxx", c))
	}
	return strings.Join(parts, " or ")
}
