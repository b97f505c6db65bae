package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/servicedef"
)

// configParams are the flags that every command uses to find the services.
type configParams struct {
	configFile string
	envFile    string
	services   []string
	token      string
	clientID   string
	timeout    time.Duration
}

func (c *configParams) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "YAML config file")
	fs.StringVar(&c.envFile, "env-file", servicedef.DefaultEnvFile, "dotenv file to load if it exists")
	fs.StringArrayVar(&c.services, "service", nil, "service to test (repeatable; default is all of them)")
	fs.StringVar(&c.token, "token", "", "bearer token (overrides BOOKING_TOKEN)")
	fs.StringVar(&c.clientID, "client-id", "", "value of the X-Client-ID header")
	fs.DurationVar(&c.timeout, "timeout", 0, "per-request timeout")
}

// load builds the configuration, with flags taking precedence over the file and environment.
func (c *configParams) load() (*servicedef.Config, []servicedef.ServiceEndpoint, error) {
	cfg, err := servicedef.LoadConfig(servicedef.LoadOptions{ConfigFile: c.configFile, EnvFile: c.envFile})
	if err != nil {
		return nil, nil, err
	}
	if c.token != "" {
		cfg.Token = c.token
	}
	if c.clientID != "" {
		cfg.ClientID = c.clientID
	}
	if c.timeout != 0 {
		cfg.RequestTimeout = c.timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	services, err := cfg.Select(c.services)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (configured services: %v)", err, cfg.ServiceNames())
	}
	return cfg, services, nil
}

type runParams struct {
	configParams
	suiteFiles  []string
	skipBuiltIn bool
	filters     framework.RegexFilters
	debug       bool
	debugAll    bool
	xlsxPath    string
	noColor     bool
}

func (r *runParams) addFlags(fs *pflag.FlagSet) {
	r.configParams.addFlags(fs)
	fs.StringArrayVar(&r.suiteFiles, "suite-file", nil, "YAML or JSON suite file to run (repeatable)")
	fs.BoolVar(&r.skipBuiltIn, "no-builtin", false, "run only the suites from suite files")
	fs.Var(&r.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&r.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&r.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&r.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&r.xlsxPath, "xlsx", "", "also write a spreadsheet of every request to this file")
	fs.BoolVar(&r.noColor, "no-color", false, "disable coloured output")
}
