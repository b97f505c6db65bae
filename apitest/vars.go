package apitest

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Vars holds the values captured by earlier cases of a suite.
type Vars struct {
	values map[string]ldvalue.Value
}

func NewVars() *Vars {
	return &Vars{values: make(map[string]ldvalue.Value)}
}

func (v *Vars) Set(name string, value ldvalue.Value) {
	v.values[name] = value
}

func (v *Vars) Get(name string) (ldvalue.Value, bool) {
	value, ok := v.values[name]
	return value, ok
}

func (v *Vars) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Names returns the defined variable names in sorted order.
func (v *Vars) Names() []string {
	ret := make([]string, 0, len(v.values))
	for k := range v.values {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// AsMap converts the variables to plain Go values for expression evaluation.
func (v *Vars) AsMap() map[string]interface{} {
	ret := make(map[string]interface{}, len(v.values))
	for k, value := range v.values {
		ret[k] = value.AsArbitraryValue()
	}
	return ret
}

func placeholders(s string) []string {
	var ret []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(s, -1) {
		ret = append(ret, m[1])
	}
	return ret
}

func valuePlaceholders(value ldvalue.Value) []string {
	var ret []string
	switch value.Type() {
	case ldvalue.StringType:
		ret = append(ret, placeholders(value.StringValue())...)
	case ldvalue.ArrayType:
		for i := 0; i < value.Count(); i++ {
			ret = append(ret, valuePlaceholders(value.GetByIndex(i))...)
		}
	case ldvalue.ObjectType:
		keys := value.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			ret = append(ret, valuePlaceholders(value.GetByKey(k))...)
		}
	}
	return ret
}

func textOf(value ldvalue.Value) string {
	if value.IsString() {
		return value.StringValue()
	}
	return value.JSONString()
}

func (v *Vars) replace(s string, escape func(string) string) string {
	return placeholderRegex.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		value, ok := v.values[name]
		if !ok {
			return m
		}
		return escape(textOf(value))
	})
}

func (v *Vars) substitute(s string) string {
	return v.replace(s, func(s string) string { return s })
}

// substitutePath is like substitute but escapes each value as a path segment.
func (v *Vars) substitutePath(s string) string {
	return v.replace(s, url.PathEscape)
}

// substituteValue replaces placeholders in every string inside a JSON value. A string that
// consists of nothing but one placeholder is replaced by the variable's value, keeping its
// JSON type.
func (v *Vars) substituteValue(value ldvalue.Value) ldvalue.Value {
	switch value.Type() {
	case ldvalue.StringType:
		s := value.StringValue()
		if m := placeholderRegex.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
			if replacement, ok := v.values[s[m[2]:m[3]]]; ok {
				return replacement
			}
		}
		return ldvalue.String(v.substitute(s))
	case ldvalue.ArrayType:
		b := ldvalue.ArrayBuild()
		for i := 0; i < value.Count(); i++ {
			b.Add(v.substituteValue(value.GetByIndex(i)))
		}
		return b.Build()
	case ldvalue.ObjectType:
		b := ldvalue.ObjectBuild()
		for _, k := range value.Keys() {
			b.Set(k, v.substituteValue(value.GetByKey(k)))
		}
		return b.Build()
	default:
		return value
	}
}

// lookupPath finds a value by a dotted path such as "user.user_id" or "0.id". An empty
// path or "." refers to the value itself.
func lookupPath(value ldvalue.Value, path string) (ldvalue.Value, bool) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return value, true
	}
	current := value
	for _, part := range strings.Split(path, ".") {
		switch current.Type() {
		case ldvalue.ObjectType:
			next, ok := current.TryGetByKey(part)
			if !ok {
				return ldvalue.Null(), false
			}
			current = next
		case ldvalue.ArrayType:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= current.Count() {
				return ldvalue.Null(), false
			}
			current = current.GetByIndex(i)
		default:
			return ldvalue.Null(), false
		}
	}
	return current, true
}
