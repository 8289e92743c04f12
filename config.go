package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeIssue = "issue"
	ModeTPM   = "tpm"
)

type Config struct {
	Mode      string
	LogLevel  string
	LogFormat string
	DryRun    bool

	Issue    IssueConfig
	GitHub   GitHubAuthConfig
	Remote   RemoteModelConfig
	TPM      TPMConfig
	Telegram TelegramConfig
}

type IssueConfig struct {
	Text       string
	Repository string
	Number     int
}

type TPMConfig struct {
	Operation string
	Target    string
	Verbose   bool
	Delay     time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

func (c TelegramConfig) Enabled() bool {
	return strings.TrimSpace(c.BotToken) != "" && c.ChatID != 0
}

// Action inputs arrive as INPUT_<NAME>. The remaining names are the
// conventional variables set by the runner or by users outside Actions.
var inputBindings = []struct {
	key  string
	envs []string
}{
	{"mode", []string{"INPUT_MODE", "ACTION_MODE"}},
	{"log_level", []string{"INPUT_LOG_LEVEL", "LOG_LEVEL"}},
	{"log_format", []string{"INPUT_LOG_FORMAT", "LOG_FORMAT"}},
	{"dry_run", []string{"INPUT_DRY_RUN", "DRY_RUN"}},

	{"issue_text", []string{"INPUT_ISSUE_TEXT"}},
	{"repository", []string{"INPUT_REPOSITORY", "GITHUB_REPOSITORY"}},
	{"issue_number", []string{"INPUT_ISSUE_NUMBER"}},

	{"github_token", []string{"INPUT_GITHUB_TOKEN", "GITHUB_TOKEN"}},
	{"github_api_url", []string{"INPUT_GITHUB_API_URL", "GITHUB_API_URL"}},
	{"app_id", []string{"INPUT_APP_ID", "GITHUB_APP_ID"}},
	{"app_private_key", []string{"INPUT_APP_PRIVATE_KEY", "GITHUB_APP_PRIVATE_KEY"}},
	{"app_installation_id", []string{"INPUT_APP_INSTALLATION_ID", "GITHUB_APP_INSTALLATION_ID"}},

	{"azure_openai_api_key", []string{"INPUT_AZURE_OPENAI_API_KEY", "AZURE_OPENAI_API_KEY"}},
	{"azure_openai_endpoint", []string{"INPUT_AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_ENDPOINT"}},
	{"azure_openai_api_version", []string{"INPUT_AZURE_OPENAI_API_VERSION", "AZURE_OPENAI_API_VERSION"}},
	{"azure_openai_deployment_name", []string{"INPUT_AZURE_OPENAI_DEPLOYMENT_NAME", "AZURE_OPENAI_DEPLOYMENT_NAME"}},

	{"operation", []string{"INPUT_OPERATION", "TPM_OPERATION"}},
	{"target", []string{"INPUT_TARGET", "TPM_TARGET"}},
	{"verbose", []string{"INPUT_VERBOSE", "TPM_VERBOSE"}},
	{"tpm_delay", []string{"INPUT_TPM_DELAY", "TPM_DELAY"}},

	{"telegram_bot_token", []string{"INPUT_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"}},
	{"telegram_chat_id", []string{"INPUT_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"}},
}

// BindInputs registers defaults and environment bindings on v.
func BindInputs(v *viper.Viper) error {
	v.SetDefault("mode", ModeIssue)
	v.SetDefault("log_level", "info")
	v.SetDefault("operation", string(TPMOperationInfo))
	v.SetDefault("target", defaultTPMTarget)
	v.SetDefault("tpm_delay", defaultTPMDelay.String())

	for _, b := range inputBindings {
		args := append([]string{b.key}, b.envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding %s: %w", b.key, err)
		}
	}
	return nil
}

func LoadConfig(v *viper.Viper) (*Config, error) {
	config := &Config{
		Mode:   strings.ToLower(strings.TrimSpace(v.GetString("mode"))),
		DryRun: v.GetBool("dry_run"),
	}

	if config.Mode != ModeIssue && config.Mode != ModeTPM {
		return nil, ValidationError{Field: "mode", Message: fmt.Sprintf("invalid mode %q, must be one of: issue, tpm", config.Mode)}
	}

	if err := loadLoggingConfig(v, config); err != nil {
		return nil, err
	}

	issue, err := loadIssueConfig(v)
	if err != nil {
		return nil, err
	}
	config.Issue = issue

	auth, err := loadGitHubAuthConfig(v)
	if err != nil {
		return nil, err
	}
	config.GitHub = auth

	config.Remote = RemoteModelConfig{
		APIKey:         strings.TrimSpace(v.GetString("azure_openai_api_key")),
		Endpoint:       strings.TrimSpace(v.GetString("azure_openai_endpoint")),
		APIVersion:     strings.TrimSpace(v.GetString("azure_openai_api_version")),
		DeploymentName: strings.TrimSpace(v.GetString("azure_openai_deployment_name")),
	}

	tpm, err := loadTPMConfig(v)
	if err != nil {
		return nil, err
	}
	config.TPM = tpm

	telegram, err := loadTelegramConfig(v)
	if err != nil {
		return nil, err
	}
	config.Telegram = telegram

	return config, nil
}

func loadLoggingConfig(v *viper.Viper, config *Config) error {
	level := strings.ToLower(strings.TrimSpace(v.GetString("log_level")))
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[level] {
		return ValidationError{Field: "log_level", Message: fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", level)}
	}
	config.LogLevel = level

	format := strings.ToLower(strings.TrimSpace(v.GetString("log_format")))
	if format == "" {
		format = "text"
		if os.Getenv("GITHUB_ACTIONS") == "true" {
			format = "actions"
		}
	}
	validFormats := map[string]bool{"text": true, "json": true, "actions": true}
	if !validFormats[format] {
		return ValidationError{Field: "log_format", Message: fmt.Sprintf("invalid format %q, must be one of: text, json, actions", format)}
	}
	config.LogFormat = format

	return nil
}

func loadIssueConfig(v *viper.Viper) (IssueConfig, error) {
	issue := IssueConfig{
		Text:       v.GetString("issue_text"),
		Repository: strings.TrimSpace(v.GetString("repository")),
	}

	if numEnv := strings.TrimSpace(v.GetString("issue_number")); numEnv != "" {
		parsed, err := strconv.Atoi(numEnv)
		if err != nil {
			return issue, ValidationError{Field: "issue_number", Message: fmt.Sprintf("invalid value %q: %v", numEnv, err)}
		}
		issue.Number = parsed
	}

	return issue, nil
}

func loadGitHubAuthConfig(v *viper.Viper) (GitHubAuthConfig, error) {
	auth := GitHubAuthConfig{
		Token:         strings.TrimSpace(v.GetString("github_token")),
		AppID:         strings.TrimSpace(v.GetString("app_id")),
		AppPrivateKey: strings.TrimSpace(v.GetString("app_private_key")),
		BaseURL:       strings.TrimSpace(v.GetString("github_api_url")),
	}

	if idEnv := strings.TrimSpace(v.GetString("app_installation_id")); idEnv != "" {
		parsed, err := strconv.ParseInt(idEnv, 10, 64)
		if err != nil {
			return auth, ValidationError{Field: "app_installation_id", Message: fmt.Sprintf("invalid value %q: %v", idEnv, err)}
		}
		auth.AppInstallationID = parsed
	}

	return auth, nil
}

func loadTPMConfig(v *viper.Viper) (TPMConfig, error) {
	tpm := TPMConfig{
		Operation: strings.TrimSpace(v.GetString("operation")),
		Target:    strings.TrimSpace(v.GetString("target")),
		Verbose:   v.GetBool("verbose"),
		Delay:     defaultTPMDelay,
	}

	if delayEnv := strings.TrimSpace(v.GetString("tpm_delay")); delayEnv != "" {
		parsed, err := time.ParseDuration(delayEnv)
		if err != nil {
			return tpm, ValidationError{Field: "tpm_delay", Message: fmt.Sprintf("invalid duration %q: %v", delayEnv, err)}
		}
		if parsed < 0 {
			return tpm, ValidationError{Field: "tpm_delay", Message: "must not be negative"}
		}
		tpm.Delay = parsed
	}

	return tpm, nil
}

func loadTelegramConfig(v *viper.Viper) (TelegramConfig, error) {
	telegram := TelegramConfig{
		BotToken: strings.TrimSpace(v.GetString("telegram_bot_token")),
	}

	if chatEnv := strings.TrimSpace(v.GetString("telegram_chat_id")); chatEnv != "" {
		parsed, err := strconv.ParseInt(chatEnv, 10, 64)
		if err != nil {
			return telegram, ValidationError{Field: "telegram_chat_id", Message: fmt.Sprintf("invalid value %q: %v", chatEnv, err)}
		}
		telegram.ChatID = parsed
	}

	return telegram, nil
}

// ValidateIssueMode checks the inputs required before any network call is
// made in issue mode.
func (c *Config) ValidateIssueMode() error {
	if strings.TrimSpace(c.Issue.Text) == "" {
		return ValidationError{Field: "issue_text", Message: "is required"}
	}
	if c.Issue.Repository == "" {
		return ValidationError{Field: "repository", Message: "is required"}
	}
	if _, _, err := ParseRepository(c.Issue.Repository); err != nil {
		return err
	}
	if c.Issue.Number <= 0 {
		return ValidationError{Field: "issue_number", Message: "is required and must be positive"}
	}
	if c.DryRun {
		return nil
	}
	if !c.GitHub.hasToken() && !c.GitHub.hasApp() {
		return ValidationError{Field: "github_token", Message: "is required unless app_id, app_private_key and app_installation_id are set"}
	}
	return nil
}

func (c *Config) ValidateTPMMode() error {
	if c.TPM.Operation == "" {
		return ValidationError{Field: "operation", Message: "is required"}
	}
	if c.TPM.Delay < 0 {
		return ValidationError{Field: "tpm_delay", Message: "must not be negative"}
	}
	return nil
}
