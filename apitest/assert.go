package apitest

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/tripsuite/booking-contract-tests/client"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// assertionEnv is what an assertion expression can see.
func assertionEnv(result client.Result, vars *Vars) map[string]interface{} {
	return map[string]interface{}{
		"status":      result.StatusCode,
		"body":        result.Body.AsArbitraryValue(),
		"text":        result.Text,
		"detail":      result.Detail,
		"duration_ms": result.Duration.Milliseconds(),
		"vars":        vars.AsMap(),
		// same compares two JSON values structurally
		"same": func(a, b interface{}) bool {
			return ldvalue.CopyArbitraryValue(a).Equal(ldvalue.CopyArbitraryValue(b))
		},
	}
}

// evaluateAssertion returns an error if the expression is invalid or evaluates to false.
func evaluateAssertion(expression string, env map[string]interface{}) error {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile assertion %q: %w", expression, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("evaluate assertion %q: %w", expression, err)
	}
	if ok, _ := output.(bool); !ok {
		return fmt.Errorf("assertion failed: %s", expression)
	}
	return nil
}
