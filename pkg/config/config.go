package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	GCP      GCPConfig
	GCS      GCSConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Workflow WorkflowConfig
}

// Load reads RELIEF_* variables and reports every invalid group at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(),
		cfg.Outbox.validate(),
		cfg.Workflow.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RELIEF_APP_ENV" required:"true"`
	Port         string `envconfig:"RELIEF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RELIEF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RELIEF_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"RELIEF_LOG_FORMAT" default:"json"`
	// CORSOrigins extends the local development origins.
	CORSOrigins []string `envconfig:"RELIEF_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RELIEF_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN         string `envconfig:"RELIEF_DB_DSN"`
	Driver      string `envconfig:"RELIEF_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"RELIEF_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"RELIEF_DB_HOST"`
	LegacyPort     int    `envconfig:"RELIEF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RELIEF_DB_USER"`
	LegacyPassword string `envconfig:"RELIEF_DB_PASSWORD"`
	LegacyName     string `envconfig:"RELIEF_DB_NAME"`
	LegacySSLMode  string `envconfig:"RELIEF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RELIEF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RELIEF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RELIEF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RELIEF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"RELIEF_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL                string        `envconfig:"RELIEF_REDIS_URL" required:"true"`
	Address            string        `envconfig:"RELIEF_REDIS_ADDR"`
	Password           string        `envconfig:"RELIEF_REDIS_PASSWORD"`
	DB                 int           `envconfig:"RELIEF_REDIS_DB" default:"0"`
	PoolSize           int           `envconfig:"RELIEF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns       int           `envconfig:"RELIEF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout        time.Duration `envconfig:"RELIEF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout        time.Duration `envconfig:"RELIEF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout       time.Duration `envconfig:"RELIEF_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL     time.Duration `envconfig:"RELIEF_REDIS_IDEMPOTENCY_TTL" default:"24h"`
	RateLimitPerMinute int           `envconfig:"RELIEF_RATE_LIMIT_PER_MINUTE" default:"120"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RELIEF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RELIEF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RELIEF_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RELIEF_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"RELIEF_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RELIEF_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName      string        `envconfig:"RELIEF_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry time.Duration `envconfig:"RELIEF_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	CDNBaseURL      string        `envconfig:"RELIEF_GCS_CDN_BASE_URL"`
}

type PubSubConfig struct {
	PhaseEventsTopic  string `envconfig:"RELIEF_PUBSUB_PHASE_EVENTS_TOPIC" default:"relief-phase-events"`
	DisbursementTopic string `envconfig:"RELIEF_PUBSUB_DISBURSEMENT_TOPIC" default:"relief-disbursements"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RELIEF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RELIEF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RELIEF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// WorkflowConfig tunes the phase workflow engine.
type WorkflowConfig struct {
	// ProofVarianceTolerancePct is the percentage of the planned total a proof may
	// diverge by before it is flagged for the auditor. Zero flags any divergence.
	ProofVarianceTolerancePct string `envconfig:"RELIEF_WORKFLOW_PROOF_VARIANCE_TOLERANCE_PCT" default:"0"`
	ConflictRetries           int    `envconfig:"RELIEF_WORKFLOW_CONFLICT_RETRIES" default:"1"`
	MaxEvidenceKeys           int    `envconfig:"RELIEF_WORKFLOW_MAX_EVIDENCE_KEYS" default:"10"`
}

// VarianceTolerance parses ProofVarianceTolerancePct.
func (w WorkflowConfig) VarianceTolerance() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(w.ProofVarianceTolerancePct))
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

func (w WorkflowConfig) validate() (err error) {
	if raw := strings.TrimSpace(w.ProofVarianceTolerancePct); raw != "" {
		value, parseErr := decimal.NewFromString(raw)
		switch {
		case parseErr != nil:
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvProofVarianceTolerance, parseErr))
		case value.IsNegative():
			err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvProofVarianceTolerance))
		}
	}
	if w.ConflictRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvConflictRetries))
	}
	if w.MaxEvidenceKeys < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", EnvMaxEvidenceKeys))
	}
	return err
}

func (o OutboxConfig) validate() error {
	if o.BatchSize < 0 || o.PollIntervalMS < 0 || o.MaxAttempts < 0 {
		return errors.New("outbox batch size, poll interval and max attempts must not be negative")
	}
	return nil
}

// ensureDSN composes a postgres URL from the split RELIEF_DB_* parts when no
// DSN is given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		dsn.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
