package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Blodie/locust-stages/internal/config"
	"github.com/Blodie/locust-stages/internal/output"
	"github.com/Blodie/locust-stages/internal/perf"
	"github.com/Blodie/locust-stages/internal/tpo"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test",
	Long: `Run a load test described by a plan file, or the built-in default
plan when no file is given.

Examples:
  loadtest run
  loadtest run --plan plans/perf.yaml
  loadtest run --plan plans/perf.yaml --environment alb --log-responses`,
	RunE: runLoadTest,
}

func init() {
	runCmd.Flags().StringP("plan", "p", "", "path to the YAML plan file")
	runCmd.Flags().String("environment", "", "override the plan's environment (perf, alb, nlb)")
	runCmd.Flags().Bool("use-global-tokens", false, "share refreshed bearer tokens per vendor")
	runCmd.Flags().Bool("log-responses", false, "log every response body")
	runCmd.Flags().Bool("no-color", false, "disable colored output")
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	planPath, _ := cmd.Flags().GetString("plan")

	plan := config.DefaultPlan()
	if planPath != "" {
		loaded, err := config.Load(planPath)
		if err != nil {
			return err
		}
		plan = loaded
	}

	if cmd.Flags().Changed("environment") {
		plan.Environment, _ = cmd.Flags().GetString("environment")
		if err := plan.Validate(); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("use-global-tokens") {
		plan.UseGlobalTokens, _ = cmd.Flags().GetBool("use-global-tokens")
	}
	if cmd.Flags().Changed("log-responses") {
		plan.LogResponses, _ = cmd.Flags().GetBool("log-responses")
	}

	opts, err := engineOptions(plan)
	if err != nil {
		return err
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	console := output.NewConsole(output.ConsoleConfig{
		Name:    plan.Name,
		Writer:  cmd.OutOrStdout(),
		NoColor: noColor,
	})

	engine, err := perf.NewEngine(opts, console)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return engine.Run(ctx)
}

// engineOptions converts a validated plan into engine options.
func engineOptions(plan *config.Plan) (perf.Options, error) {
	stages, err := plan.ShapeStages()
	if err != nil {
		return perf.Options{}, err
	}

	return perf.Options{
		Environment: tpo.Environment(plan.Environment),
		Stages:      stages,
		RampRate:    plan.RampRate,
		Weights: perf.Weights{
			TokenGeneration: plan.Tasks.TokenGeneration,
			GetMenu:         plan.Tasks.GetMenu,
			Order:           plan.Tasks.Order,
			Release:         plan.Tasks.Release,
		},
		ReleaseWait:     time.Duration(plan.ReleaseWait),
		UseGlobalTokens: plan.UseGlobalTokens,
		LogResponses:    plan.LogResponses,
		LogWriter:       os.Stdout,
		StatsInterval:   time.Duration(plan.StatsInterval),
		HTTPClient:      httpClientConfig(plan.HTTP),
		BaseURLs:        plan.EnvironmentBaseURLs(),
		Catalog:         plan.Catalog(),
	}, nil
}

// httpClientConfig overlays the plan's HTTP settings on the defaults.
func httpClientConfig(h config.HTTPSettings) perf.HTTPClientConfig {
	cfg := perf.DefaultHTTPClientConfig()
	cfg.Timeout = h.Timeout.GetDuration(cfg.Timeout)
	cfg.IdleConnTimeout = h.IdleConnTimeout.GetDuration(cfg.IdleConnTimeout)
	if h.MaxIdleConns > 0 {
		cfg.MaxIdleConns = h.MaxIdleConns
	}
	if h.MaxIdleConnsPerHost > 0 {
		cfg.MaxIdleConnsPerHost = h.MaxIdleConnsPerHost
	}
	if h.MaxConnsPerHost > 0 {
		cfg.MaxConnsPerHost = h.MaxConnsPerHost
	}
	cfg.DisableKeepAlives = h.DisableKeepAlives
	cfg.DisableCompression = h.DisableCompression
	return cfg
}
