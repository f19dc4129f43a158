package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Stripe     StripeConfig     `mapstructure:"stripe" validate:"required"`
	Advancer   AdvancerConfig   `mapstructure:"advancer" validate:"required"`
	Dunning    DunningConfig    `mapstructure:"dunning" validate:"required"`
	Scenario   ScenarioConfig   `mapstructure:"scenario" validate:"required"`
	Run        RunConfig        `mapstructure:"run" validate:"required"`
	Export     ExportConfig     `mapstructure:"export"`
	S3         S3Config         `mapstructure:"s3"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LoggingConfig struct {
	Level  types.LogLevel  `mapstructure:"level" validate:"required"`
	Format types.LogFormat `mapstructure:"format"`
}

// StripeConfig holds the credentials and client tuning for the billing platform.
// Only test-mode keys are accepted.
type StripeConfig struct {
	SecretKey         string  `mapstructure:"secret_key" validate:"required,startswith=sk_test_"`
	PriceID           string  `mapstructure:"price_id"`
	BasePriceID       string  `mapstructure:"base_price_id"`
	UpgradePriceID    string  `mapstructure:"upgrade_price_id"`
	RateLimit         float64 `mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst         int     `mapstructure:"rate_burst" validate:"gte=1"`
	MaxNetworkRetries int64   `mapstructure:"max_network_retries" validate:"gte=0"`
}

type AdvancerConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" validate:"gte=1"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
}

type DunningConfig struct {
	Buffer       time.Duration `mapstructure:"buffer"`
	MaxRounds    int           `mapstructure:"max_rounds" validate:"gte=1"`
	FallbackStep time.Duration `mapstructure:"fallback_step"`
}

// ScenarioConfig holds the knobs shared by every trajectory.
type ScenarioConfig struct {
	StartTime            int64         `mapstructure:"start_time" validate:"gt=0"`
	AnchorOffset         time.Duration `mapstructure:"anchor_offset"`
	SettleDays           int           `mapstructure:"settle_days" validate:"gte=0"`
	SettlePasses         int           `mapstructure:"settle_passes" validate:"gte=1"`
	UpgradeMidMonthDays  int           `mapstructure:"upgrade_mid_month_days" validate:"gte=0"`
	SuccessToken         string        `mapstructure:"success_token" validate:"required"`
	FailToken            string        `mapstructure:"fail_token" validate:"required"`
	ClockNamePrefix      string        `mapstructure:"clock_name_prefix" validate:"required"`
	CancelMaxAttempts    int           `mapstructure:"cancel_max_attempts" validate:"gte=1"`
	CancelInitialBackoff time.Duration `mapstructure:"cancel_initial_backoff"`
	CancelMaxBackoff     time.Duration `mapstructure:"cancel_max_backoff"`
}

// RunConfig describes a single batch. Most fields are overridden by CLI flags.
type RunConfig struct {
	Count            int    `mapstructure:"count" validate:"gte=0"`
	Months           int    `mapstructure:"months" validate:"gte=1"`
	Seed             int64  `mapstructure:"seed"`
	ActivePct        int    `mapstructure:"active_pct" validate:"gte=0,lte=100"`
	CanceledPct      int    `mapstructure:"canceled_pct" validate:"gte=0,lte=100"`
	AnnualPct        int    `mapstructure:"annual_pct" validate:"gte=0,lte=100"`
	MinPaidMonths    int    `mapstructure:"min_paid_months" validate:"gte=1"`
	MaxPaidMonths    int    `mapstructure:"max_paid_months" validate:"gtefield=MinPaidMonths"`
	MinPastDueMonths int    `mapstructure:"min_past_due_months" validate:"gte=0"`
	MaxPastDueMonths int    `mapstructure:"max_past_due_months" validate:"gtefield=MinPastDueMonths"`
	TotalMonths      int    `mapstructure:"total_months" validate:"gte=1"`
	MinUpgradeAfter  int    `mapstructure:"min_upgrade_after" validate:"gte=1"`
	MaxUpgradeAfter  int    `mapstructure:"max_upgrade_after" validate:"gtefield=MinUpgradeAfter"`
	EmailPrefix      string `mapstructure:"email_prefix"`
	EmailDomain      string `mapstructure:"email_domain" validate:"required"`
	Cleanup          bool   `mapstructure:"cleanup"`
}

type ExportConfig struct {
	JSONPath string `mapstructure:"json_path"`
	CSVPath  string `mapstructure:"csv_path"`
}

type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	TLS      bool   `mapstructure:"tls"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// plainEnvKeys are honoured without the CLOCKWORK_ prefix so existing .env
// files keep working.
var plainEnvKeys = map[string]string{
	"stripe.secret_key":       "STRIPE_SECRET_KEY",
	"stripe.price_id":         "PRICE_ID",
	"stripe.base_price_id":    "BASE_PRICE_ID",
	"stripe.upgrade_price_id": "UPGRADE_PRICE_ID",
}

func NewConfig() (*Configuration, error) {
	// A missing .env is not an error
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/clockwork")

	setDefaults(v)

	v.SetEnvPrefix("CLOCKWORK")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	for key, plain := range plainEnvKeys {
		envKey := "CLOCKWORK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, plain); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Run.Validate()
}

// Validate checks the run tags and the split the tags cannot express. Run
// flags are applied after loading, so callers validate again before use.
func (r RunConfig) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	if r.ActivePct+r.CanceledPct != 100 {
		return fmt.Errorf("run.active_pct (%d) and run.canceled_pct (%d) must sum to 100", r.ActivePct, r.CanceledPct)
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or tests that never read config.yaml
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Logging: LoggingConfig{Level: types.LogLevelDebug, Format: types.LogFormatJSON},
		Stripe: StripeConfig{
			RateLimit:         8,
			RateBurst:         1,
			MaxNetworkRetries: 0,
		},
		Advancer: AdvancerConfig{
			MaxAttempts:       8,
			InitialBackoff:    500 * time.Millisecond,
			BackoffMultiplier: 1.5,
			MaxBackoff:        5 * time.Second,
			PollInterval:      time.Second,
			PollTimeout:       60 * time.Second,
		},
		Dunning: DunningConfig{
			Buffer:       60 * time.Second,
			MaxRounds:    10,
			FallbackStep: 24 * time.Hour,
		},
		Scenario: ScenarioConfig{
			StartTime:            types.BaselineStart,
			AnchorOffset:         5 * time.Minute,
			SettleDays:           2,
			SettlePasses:         3,
			UpgradeMidMonthDays:  15,
			SuccessToken:         "tok_visa",
			FailToken:            "tok_chargeCustomerFail",
			ClockNamePrefix:      "clock_",
			CancelMaxAttempts:    20,
			CancelInitialBackoff: 500 * time.Millisecond,
			CancelMaxBackoff:     2 * time.Second,
		},
		Run: RunConfig{
			Count:            10,
			Months:           12,
			Seed:             42,
			ActivePct:        80,
			CanceledPct:      20,
			AnnualPct:        0,
			MinPaidMonths:    1,
			MaxPaidMonths:    3,
			MinPastDueMonths: 0,
			MaxPastDueMonths: 2,
			TotalMonths:      6,
			MinUpgradeAfter:  1,
			MaxUpgradeAfter:  4,
			EmailPrefix:      "test",
			EmailDomain:      "actual.com",
		},
		Export: ExportConfig{
			JSONPath: "generated_customers.json",
		},
		S3: S3Config{
			KeyPrefix:   "clockwork",
			Compression: "none",
		},
		Sentry: SentryConfig{
			Environment: "local",
			SampleRate:  1.0,
		},
	}
}

// setDefaults mirrors GetDefaultConfig into viper so env overrides apply
// even when no config.yaml is present.
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.price_id", "")
	v.SetDefault("stripe.base_price_id", "")
	v.SetDefault("stripe.upgrade_price_id", "")
	v.SetDefault("stripe.rate_limit", d.Stripe.RateLimit)
	v.SetDefault("stripe.rate_burst", d.Stripe.RateBurst)
	v.SetDefault("stripe.max_network_retries", d.Stripe.MaxNetworkRetries)

	v.SetDefault("advancer.max_attempts", d.Advancer.MaxAttempts)
	v.SetDefault("advancer.initial_backoff", d.Advancer.InitialBackoff)
	v.SetDefault("advancer.backoff_multiplier", d.Advancer.BackoffMultiplier)
	v.SetDefault("advancer.max_backoff", d.Advancer.MaxBackoff)
	v.SetDefault("advancer.poll_interval", d.Advancer.PollInterval)
	v.SetDefault("advancer.poll_timeout", d.Advancer.PollTimeout)

	v.SetDefault("dunning.buffer", d.Dunning.Buffer)
	v.SetDefault("dunning.max_rounds", d.Dunning.MaxRounds)
	v.SetDefault("dunning.fallback_step", d.Dunning.FallbackStep)

	v.SetDefault("scenario.start_time", d.Scenario.StartTime)
	v.SetDefault("scenario.anchor_offset", d.Scenario.AnchorOffset)
	v.SetDefault("scenario.settle_days", d.Scenario.SettleDays)
	v.SetDefault("scenario.settle_passes", d.Scenario.SettlePasses)
	v.SetDefault("scenario.upgrade_mid_month_days", d.Scenario.UpgradeMidMonthDays)
	v.SetDefault("scenario.success_token", d.Scenario.SuccessToken)
	v.SetDefault("scenario.fail_token", d.Scenario.FailToken)
	v.SetDefault("scenario.clock_name_prefix", d.Scenario.ClockNamePrefix)
	v.SetDefault("scenario.cancel_max_attempts", d.Scenario.CancelMaxAttempts)
	v.SetDefault("scenario.cancel_initial_backoff", d.Scenario.CancelInitialBackoff)
	v.SetDefault("scenario.cancel_max_backoff", d.Scenario.CancelMaxBackoff)

	v.SetDefault("run.count", d.Run.Count)
	v.SetDefault("run.months", d.Run.Months)
	v.SetDefault("run.seed", d.Run.Seed)
	v.SetDefault("run.active_pct", d.Run.ActivePct)
	v.SetDefault("run.canceled_pct", d.Run.CanceledPct)
	v.SetDefault("run.annual_pct", d.Run.AnnualPct)
	v.SetDefault("run.min_paid_months", d.Run.MinPaidMonths)
	v.SetDefault("run.max_paid_months", d.Run.MaxPaidMonths)
	v.SetDefault("run.min_past_due_months", d.Run.MinPastDueMonths)
	v.SetDefault("run.max_past_due_months", d.Run.MaxPastDueMonths)
	v.SetDefault("run.total_months", d.Run.TotalMonths)
	v.SetDefault("run.min_upgrade_after", d.Run.MinUpgradeAfter)
	v.SetDefault("run.max_upgrade_after", d.Run.MaxUpgradeAfter)
	v.SetDefault("run.email_prefix", d.Run.EmailPrefix)
	v.SetDefault("run.email_domain", d.Run.EmailDomain)
	v.SetDefault("run.cleanup", false)

	v.SetDefault("export.json_path", d.Export.JSONPath)
	v.SetDefault("export.csv_path", "")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.key_prefix", d.S3.KeyPrefix)
	v.SetDefault("s3.compression", d.S3.Compression)
	v.SetDefault("s3.encryption", "")
	v.SetDefault("s3.endpoint_url", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.session_token", "")

	v.SetDefault("clickhouse.enabled", false)
	v.SetDefault("clickhouse.address", "127.0.0.1:9000")
	v.SetDefault("clickhouse.tls", false)
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("clickhouse.password", "")
	v.SetDefault("clickhouse.database", "clockwork")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", d.Sentry.Environment)
	v.SetDefault("sentry.sample_rate", d.Sentry.SampleRate)

	v.SetDefault("metrics.textfile_path", "")
}

func (c ClickHouseConfig) GetClientOptions() *clickhouse.Options {
	options := &clickhouse.Options{
		Addr: []string{c.Address},
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
	if c.TLS {
		options.TLS = &tls.Config{}
	}
	return options
}
