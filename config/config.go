package config

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string      `mapstructure:"PORT" validate:"required"`
	InternalAuthHeader string      `mapstructure:"INTERNAL_AUTH_HEADER" validate:"required"`
	Db                 DbConfig    `mapstructure:",squash"`
	Jwt                JwtConfig   `mapstructure:",squash"`
	Nats               NatsConfig  `mapstructure:",squash"`
	Order              OrderConfig `mapstructure:",squash"`
}

type DbConfig struct {
	Host     string `mapstructure:"DB_HOST" validate:"required"`
	Port     string `mapstructure:"DB_PORT" validate:"required"`
	Username string `mapstructure:"DB_USERNAME" validate:"required"`
	Password string `mapstructure:"DB_PASSWORD" validate:"required"`
	DbName   string `mapstructure:"DB_DBNAME" validate:"required"`
	SSLMode  string `mapstructure:"DB_SSLMODE"`
}

type JwtConfig struct {
	SecretKey string `mapstructure:"JWT_SECRETKEY" validate:"required"`
}

type NatsConfig struct {
	Url        string `mapstructure:"NATS_URL" validate:"required"`
	StreamName string `mapstructure:"NATS_STREAM_NAME" validate:"required"`
	Consumer   string `mapstructure:"NATS_INTAKE_CONSUMER" validate:"required"`
	MaxDeliver int    `mapstructure:"NATS_INTAKE_MAX_DELIVER" validate:"required,min=1"`
	RetryDelay int    `mapstructure:"NATS_INTAKE_RETRY_DELAY_SECONDS" validate:"required,min=1"`
}

// OrderConfig carries the reservation lifecycle knobs. They are passed
// to the operators explicitly instead of being read from process state.
type OrderConfig struct {
	PaymentWindowMinutes int   `mapstructure:"ORDER_PAYMENT_WINDOW_MINUTES" validate:"required,min=1"`
	SweepIntervalSeconds int   `mapstructure:"ORDER_SWEEP_INTERVAL_SECONDS" validate:"required,min=1"`
	SweepBatchSize       int64 `mapstructure:"ORDER_SWEEP_BATCH_SIZE" validate:"required,min=1"`
	RollbackMaxAttempts  int   `mapstructure:"ROLLBACK_MAX_ATTEMPTS" validate:"required,min=1"`
	RollbackBaseDelaySec int   `mapstructure:"ROLLBACK_BASE_DELAY_SECONDS" validate:"required,min=1"`
}

func InitConfig(ctx context.Context) (*Config, error) {
	var cfg Config

	viper.Reset()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigType("env")

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	_, err := os.Stat(envFile)
	if !os.IsNotExist(err) {
		viper.SetConfigFile(envFile)

		if err := viper.ReadInConfig(); err != nil {
			slog.WarnContext(ctx, "[InitConfig] ReadInConfig warning, continuing with env vars only", "error", err)
		} else {
			slog.InfoContext(ctx, "[InitConfig] Successfully loaded config file", "file", envFile)
		}
	} else {
		slog.InfoContext(ctx, "[InitConfig] No config file found, using environment variables")
	}

	viper.AutomaticEnv()

	envVars := []string{
		"PORT",
		"INTERNAL_AUTH_HEADER",
		"DB_HOST",
		"DB_PORT",
		"DB_USERNAME",
		"DB_PASSWORD",
		"DB_DBNAME",
		"DB_SSLMODE",
		"JWT_SECRETKEY",
		"NATS_URL",
		"NATS_STREAM_NAME",
		"NATS_INTAKE_CONSUMER",
		"NATS_INTAKE_MAX_DELIVER",
		"NATS_INTAKE_RETRY_DELAY_SECONDS",
		"ORDER_PAYMENT_WINDOW_MINUTES",
		"ORDER_SWEEP_INTERVAL_SECONDS",
		"ORDER_SWEEP_BATCH_SIZE",
		"ROLLBACK_MAX_ATTEMPTS",
		"ROLLBACK_BASE_DELAY_SECONDS",
	}

	// Bind environment variables explicitly to ensure they're mapped correctly
	for _, key := range envVars {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.ErrorContext(ctx, "[InitConfig] Unmarshal", "failed bind config", err)
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if ok {
			for _, validationErr := range validationErrs {
				slog.ErrorContext(ctx, "[InitConfig] Validation error",
					"field", validationErr.Field(),
					"namespace", validationErr.Namespace(),
					"tag", validationErr.Tag(),
					"value", validationErr.Value())
			}
		} else {
			slog.ErrorContext(ctx, "[InitConfig] Validation", "error", err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "[InitConfig] Config loaded successfully",
		"PORT", cfg.Port,
		"DB_HOST", cfg.Db.Host,
		"DB_DBNAME", cfg.Db.DbName,
		"NATS_STREAM_NAME", cfg.Nats.StreamName,
		"ORDER_PAYMENT_WINDOW_MINUTES", cfg.Order.PaymentWindowMinutes)

	return &cfg, nil
}
