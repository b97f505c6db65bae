package apitest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const suiteSchemaURL = "https://github.com/tripsuite/booking-contract-tests/schemas/suite-file.json"

var (
	valueType       = reflect.TypeOf(ldvalue.Value{})
	optionalIntType = reflect.TypeOf(ldvalue.OptionalInt{})
)

// GenerateSchema produces the JSON Schema for suite files from the Go types.
func GenerateSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.Mapper = func(t reflect.Type) *jsonschema.Schema {
		switch t {
		case valueType:
			return &jsonschema.Schema{Description: "any JSON value"}
		case optionalIntType:
			return &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")}
		}
		return nil
	}

	s := r.Reflect(&SuiteFile{})
	s.ID = suiteSchemaURL
	s.Title = "Booking API contract test suites"
	s.Description = "Schema for suite files passed with --suite-file"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// StatusList is a list of expected statuses. In a suite file each entry may be a number or
// a string such as "4xx".
type StatusList []string

func (s *StatusList) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ret := make(StatusList, 0, len(raw))
	for _, r := range raw {
		switch v := r.(type) {
		case float64:
			ret = append(ret, strconv.Itoa(int(v)))
		case string:
			ret = append(ret, v)
		default:
			return fmt.Errorf("invalid expected status %v", r)
		}
	}
	*s = ret
	return nil
}

func (StatusList) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "integer", Minimum: json.Number("100"), Maximum: json.Number("599")},
				{Type: "string", Pattern: "^[1-5]([0-9][0-9]|xx|XX)$"},
			},
		},
	}
}

// SchemaError is one problem found by schema validation.
type SchemaError struct {
	Path    string
	Message string
}

func (e SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

func compileSchema() (*sjsonschema.Schema, error) {
	schemaJSON, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(suiteSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(suiteSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// validateAgainstSchema checks a JSON document and returns every leaf error.
func validateAgainstSchema(data []byte) ([]SchemaError, error) {
	sch, err := compileSchema()
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	err = sch.Validate(doc)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return []SchemaError{{Message: err.Error()}}, nil
	}
	var errs []SchemaError
	for _, cause := range flattenValidationErrors(ve) {
		errs = append(errs, SchemaError{
			Path:    "/" + strings.Join(cause.InstanceLocation, "/"),
			Message: fmt.Sprintf("%v", cause.ErrorKind),
		})
	}
	return errs, nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
