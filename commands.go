package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/auth"
	"github.com/tripsuite/booking-contract-tests/bookingtests"
	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/probe"
	"github.com/tripsuite/booking-contract-tests/report"
	"github.com/tripsuite/booking-contract-tests/stub"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func newRunCommand() *cobra.Command {
	var params runParams
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the contract suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, &params)
		},
	}
	params.addFlags(cmd.Flags())
	return cmd
}

func runTests(cmd *cobra.Command, params *runParams) error {
	out := cmd.OutOrStdout()
	if params.noColor {
		color.NoColor = true
	}

	cfg, services, err := params.load()
	if err != nil {
		return err
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(out, "", log.LstdFlags)
	}

	var suites []apitest.Suite
	suiteFiles := append(append([]string(nil), cfg.SuiteFiles...), params.suiteFiles...)
	for _, path := range suiteFiles {
		s, err := apitest.LoadSuiteFile(path)
		if err != nil {
			return err
		}
		mainDebugLogger.Printf("Loaded %d suite(s) from %s", len(s), path)
		suites = append(suites, s...)
	}
	if err := bookingtests.CheckSuiteServices(cfg, suites); err != nil {
		return err
	}
	if params.skipBuiltIn && len(suites) == 0 {
		return fmt.Errorf("--no-builtin was given, but there are no suite files")
	}

	token, err := bookingtests.ResolveToken(cfg, time.Now())
	if err != nil {
		return err
	}
	describeToken(out, token, time.Now())
	names := make([]string, 0, len(services))
	for _, s := range services {
		mainDebugLogger.Printf("Service %s", s)
		names = append(names, s.Name)
	}

	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters, names)

	fmt.Fprintln(out, "Running test suite")

	testLogger := report.NewConsoleTestLogger(out, params.noColor)
	testLogger.DebugOutputOnFailure = params.debug || params.debugAll
	testLogger.DebugOutputOnSuccess = params.debugAll

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	results, records := bookingtests.RunTestSuite(cfg, services, params.filters.AsFilter, testLogger,
		bookingtests.Options{
			Context:     ctx,
			Token:       token,
			Suites:      suites,
			SkipBuiltIn: params.skipBuiltIn,
		})

	report.PrintResults(out, results, records, params.noColor)

	if params.xlsxPath != "" {
		sheet, err := report.WriteXLSX(params.xlsxPath, results, records, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Request log written to sheet %s of %s\n", sheet, params.xlsxPath)
	}

	if !results.OK() {
		return errTestsFailed
	}
	return nil
}

// describeToken tells the operator which user the run acts as.
func describeToken(out io.Writer, token string, now time.Time) {
	if token == "" {
		fmt.Fprintln(out, "No bearer token is configured; cases that need one will be skipped")
		return
	}
	claims, err := auth.Inspect(token)
	if err != nil {
		fmt.Fprintf(out, "The bearer token cannot be decoded (%s); it will be sent as it is\n", err)
		return
	}
	fmt.Fprintf(out, "Acting as %s\n", claims)
	if claims.Expiry != nil && !claims.Expiry.After(now) {
		fmt.Fprintln(out, "Warning: the bearer token has already expired")
	}
}

func newCheckCommand() *cobra.Command {
	var params configParams
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that every service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, services, err := params.load()
			if err != nil {
				return err
			}
			statuses := bookingtests.CheckServices(cmd.Context(), cfg, services, statusQueryTimeout, cmd.OutOrStdout())
			down := 0
			for _, s := range statuses {
				if s.Err != nil {
					down++
				}
			}
			if down > 0 {
				return fmt.Errorf("%d of %d services are not reachable", down, len(statuses))
			}
			return nil
		},
	}
	params.addFlags(cmd.Flags())
	return cmd
}

type probeParams struct {
	configParams
	method          string
	path            string
	body            string
	auth            bool
	count           int
	delay           time.Duration
	expectLimit     int
	rejectionStatus int
}

func newProbeCommand() *cobra.Command {
	var params probeParams
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send the same request repeatedly to observe a service's rate limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, &params)
		},
	}
	fs := cmd.Flags()
	params.addFlags(fs)
	fs.StringVar(&params.method, "method", "GET", "HTTP method")
	fs.StringVar(&params.path, "path", "", "request path")
	fs.StringVar(&params.body, "body", "", "JSON request body")
	fs.BoolVar(&params.auth, "auth", false, "send the bearer token")
	fs.IntVar(&params.count, "count", probe.DefaultCount, "number of requests")
	fs.DurationVar(&params.delay, "delay", probe.DefaultDelay, "pause after each request")
	fs.IntVar(&params.expectLimit, "expect-limit", 0, "fail unless exactly this many requests are allowed before rejections start")
	fs.IntVar(&params.rejectionStatus, "rejection-status", probe.DefaultRejectionStatus, "status that signals a rejected request")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func runProbe(cmd *cobra.Command, params *probeParams) error {
	out := cmd.OutOrStdout()
	if len(params.services) != 1 {
		return fmt.Errorf("probe needs exactly one --service")
	}
	cfg, services, err := params.load()
	if err != nil {
		return err
	}
	body := ldvalue.Null()
	if params.body != "" {
		if body = ldvalue.Parse([]byte(params.body)); body.IsNull() {
			return fmt.Errorf("--body is not valid JSON")
		}
	}
	token, err := bookingtests.ResolveToken(cfg, time.Now())
	if err != nil {
		return err
	}

	c := client.New(services[0], client.Config{Token: token, ClientID: cfg.ClientID, Timeout: cfg.RequestTimeout})
	config := probe.Config{
		Count:           params.count,
		Delay:           params.delay,
		ExpectLimit:     params.expectLimit,
		RejectionStatus: params.rejectionStatus,
	}
	if config.Delay == 0 {
		config.Delay = -1
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(out, "Probing %s %s\n", params.method, services[0].URL(params.path))
	result := probe.Run(ctx, c, client.Request{Method: params.method, Path: params.path, Body: body, Auth: params.auth},
		config, log.New(out, "  ", 0))

	fmt.Fprintf(out, "%d of %d requests allowed, %d rejected with status %d\n",
		result.Allowed(), len(result.Attempts), result.Rejected(), result.Config.RejectionStatus)
	if problems := result.Problems(); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return fmt.Errorf("rate limit probe found %d problem(s)", len(problems))
	}
	return nil
}

type stubParams struct {
	configParams
	tokenSecret string
}

func newStubCommand() *cobra.Command {
	var params stubParams
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve stub versions of the services at their configured addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, services, err := params.load()
			if err != nil {
				return err
			}
			secret := cfg.TokenSecret
			if params.tokenSecret != "" {
				secret = params.tokenSecret
			}
			s := stub.New(stub.Options{TokenSecret: secret, Logger: log.New(out, "", log.LstdFlags)})
			servers, err := s.Start(services)
			if err != nil {
				return err
			}
			for _, e := range servers.Endpoints() {
				fmt.Fprintf(out, "Serving %s stub at %s\n", e.Name, e.BaseURL)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return servers.Wait(ctx)
		},
	}
	params.addFlags(cmd.Flags())
	cmd.Flags().StringVar(&params.tokenSecret, "token-secret", "",
		"secret for verifying token signatures (at least 32 bytes; shorter secrets only decode tokens)")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of suite files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := apitest.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
