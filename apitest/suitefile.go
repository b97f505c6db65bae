package apitest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tripsuite/booking-contract-tests/client"

	"gopkg.in/yaml.v3"
)

// SuiteFile is the document format of --suite-file, written in YAML or JSON.
type SuiteFile struct {
	Suites []Suite `json:"suites"`
}

// LoadSuiteFile reads, validates and decodes a suite file.
func LoadSuiteFile(path string) ([]Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	suites, err := ParseSuiteFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suites, nil
}

// ParseSuiteFile validates a YAML or JSON document against the suite schema and decodes it.
func ParseSuiteFile(data []byte) ([]Suite, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("suite file cannot be represented as JSON: %w", err)
	}

	schemaErrors, err := validateAgainstSchema(jsonData)
	if err != nil {
		return nil, err
	}
	if len(schemaErrors) > 0 {
		messages := make([]string, 0, len(schemaErrors))
		for _, e := range schemaErrors {
			messages = append(messages, e.Error())
		}
		return nil, fmt.Errorf("suite file does not match the schema:\n  %s", strings.Join(messages, "\n  "))
	}

	var file SuiteFile
	if err := json.Unmarshal(jsonData, &file); err != nil {
		return nil, fmt.Errorf("decoding suite file: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return file.Suites, nil
}

// validate checks what the schema cannot express.
func (f SuiteFile) validate() error {
	var problems []string
	for _, s := range f.Suites {
		names := make(map[string]bool)
		for _, c := range s.Cases {
			if names[c.Name] {
				problems = append(problems, fmt.Sprintf("suite %s: duplicate case name %q", s.Service, c.Name))
			}
			names[c.Name] = true
			if strings.Contains(c.Name, "/") {
				problems = append(problems, fmt.Sprintf("suite %s: case name %q must not contain '/'", s.Service, c.Name))
			}
			if _, err := client.ParseExpectation(c.Expect); err != nil {
				problems = append(problems, fmt.Sprintf("suite %s, case %q: %s", s.Service, c.Name, err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid suite file:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
