package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli holds the state shared by the cobra commands of one invocation.
type cli struct {
	v       *viper.Viper
	stdout  io.Writer
	cfgFile string

	// result is nil until a mode has run.
	result *ActionResult

	newCommenter commenterFactory
	pipelineOpts []PipelineOption
}

func newCLI(v *viper.Viper, stdout io.Writer) *cli {
	return &cli{v: v, stdout: stdout}
}

func (c *cli) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tpm-issue-action",
		Short: "Analyze GitHub issues or run simulated TPM operations",
		Long: `tpm-issue-action runs as a GitHub Action in one of two modes.

issue: classify an issue with keyword analysis or Azure OpenAI and post
       the analysis as a comment.
tpm:   run a simulated TPM operation (info, check or validate).

Inputs are read from INPUT_* variables. Flags override them.

Exit codes:
  0 - success
  1 - error`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.execute(cmd.Context(), "")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "optional YAML file with input values")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: INPUT_LOG_LEVEL, LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json, actions (env: INPUT_LOG_FORMAT, LOG_FORMAT)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "compose the comment without posting it")
	_ = c.v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = c.v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = c.v.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(c.issueCommand(), c.tpmCommand(), c.versionCommand())
	return rootCmd
}

func (c *cli) issueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Analyze an issue and post the analysis as a comment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.execute(cmd.Context(), ModeIssue)
		},
	}

	cmd.Flags().String("repository", "", "repository as owner/name (env: INPUT_REPOSITORY, GITHUB_REPOSITORY)")
	cmd.Flags().Int("issue-number", 0, "issue number (env: INPUT_ISSUE_NUMBER)")
	cmd.Flags().String("issue-text", "", "issue title and body (env: INPUT_ISSUE_TEXT)")
	cmd.Flags().String("github-api-url", "", "GitHub REST API base URL (env: INPUT_GITHUB_API_URL, GITHUB_API_URL)")
	_ = c.v.BindPFlag("repository", cmd.Flags().Lookup("repository"))
	_ = c.v.BindPFlag("issue_number", cmd.Flags().Lookup("issue-number"))
	_ = c.v.BindPFlag("issue_text", cmd.Flags().Lookup("issue-text"))
	_ = c.v.BindPFlag("github_api_url", cmd.Flags().Lookup("github-api-url"))

	return cmd
}

func (c *cli) tpmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tpm",
		Short: "Run a simulated TPM operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.execute(cmd.Context(), ModeTPM)
		},
	}

	cmd.Flags().String("operation", "", "operation: info, check, validate (env: INPUT_OPERATION)")
	cmd.Flags().String("target", "", "target host (env: INPUT_TARGET)")
	cmd.Flags().BoolP("verbose", "v", false, "include operation details (env: INPUT_VERBOSE)")
	cmd.Flags().Duration("delay", 0, "simulated latency (env: INPUT_TPM_DELAY)")
	_ = c.v.BindPFlag("operation", cmd.Flags().Lookup("operation"))
	_ = c.v.BindPFlag("target", cmd.Flags().Lookup("target"))
	_ = c.v.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	_ = c.v.BindPFlag("tpm_delay", cmd.Flags().Lookup("delay"))

	return cmd
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(c.stdout, version)
		},
	}
}

// execute loads the configuration, runs the selected mode and reports the
// result as Action outputs. mode "" dispatches on the mode input.
func (c *cli) execute(ctx context.Context, mode string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if mode != "" {
		c.v.Set("mode", mode)
	}

	logger := GetLogger()
	cfg, err := c.loadConfig()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		return c.report(ActionResult{Status: StatusError, Result: err.Error()})
	}

	logger = InitLogger(cfg.LogLevel, cfg.LogFormat)

	var uc useCase
	switch cfg.Mode {
	case ModeTPM:
		uc = tpmUseCase{cfg: cfg, logger: logger}.Run
	default:
		uc = issueUseCase{
			cfg:          cfg,
			logger:       logger,
			newCommenter: c.newCommenter,
			notifier:     c.buildNotifier(cfg, logger),
			opts:         c.pipelineOpts,
		}.Run
	}

	return c.report(runAction(ctx, logger, cfg.Mode, uc))
}

func (c *cli) loadConfig() (*Config, error) {
	if err := BindInputs(c.v); err != nil {
		return nil, err
	}
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", c.cfgFile, err)
		}
	}
	return LoadConfig(c.v)
}

func (c *cli) buildNotifier(cfg *Config, logger *Logger) postNotifier {
	if !cfg.Telegram.Enabled() || cfg.DryRun || cfg.Mode != ModeIssue {
		return nil
	}
	notifier, err := NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, "", nil, logger)
	if err != nil {
		logger.Warn("Telegram notifications disabled: %v", err)
		return nil
	}
	return notifier
}

func (c *cli) report(result ActionResult) error {
	c.result = &result
	if err := WriteActionOutputs(result, c.stdout); err != nil {
		GetLogger().Error("%v", err)
		result.Status = StatusError
		c.result = &result
	}
	return nil
}

func (c *cli) exitCode() int {
	if c.result == nil {
		return 0
	}
	return c.result.ExitCode()
}
