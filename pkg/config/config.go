package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	GCP        GCPConfig
	GCS        GCSConfig
	PubSub     PubSubConfig
	Chain      ChainConfig
	Purchase     PurchaseConfig
	Settlement   SettlementConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONTENTMINT_APP_ENV" required:"true"`
	Port         string `envconfig:"CONTENTMINT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CONTENTMINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CONTENTMINT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONTENTMINT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CONTENTMINT_DB_DSN"`
	Driver string `envconfig:"CONTENTMINT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CONTENTMINT_DB_HOST"`
	LegacyPort     int    `envconfig:"CONTENTMINT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONTENTMINT_DB_USER"`
	LegacyPassword string `envconfig:"CONTENTMINT_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONTENTMINT_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONTENTMINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONTENTMINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONTENTMINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONTENTMINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONTENTMINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CONTENTMINT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CONTENTMINT_REDIS_ADDR"`
	Password     string        `envconfig:"CONTENTMINT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONTENTMINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONTENTMINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONTENTMINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONTENTMINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONTENTMINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONTENTMINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CONTENTMINT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CONTENTMINT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CONTENTMINT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CONTENTMINT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CONTENTMINT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CONTENTMINT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"CONTENTMINT_GCS_BUCKET_NAME" required:"true"`
	BuyerPrefix       string        `envconfig:"CONTENTMINT_GCS_BUYER_PREFIX" default:"purchases"`
	DownloadURLExpiry time.Duration `envconfig:"CONTENTMINT_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"CONTENTMINT_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"CONTENTMINT_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

// ChainConfig describes the custodial payment rail used for commission payouts.
type ChainConfig struct {
	CustodyBaseURL string        `envconfig:"CONTENTMINT_CHAIN_CUSTODY_BASE_URL" required:"true"`
	CustodyAPIKey  string        `envconfig:"CONTENTMINT_CHAIN_CUSTODY_API_KEY" required:"true"`
	Network        string        `envconfig:"CONTENTMINT_CHAIN_NETWORK" default:"polygon"`
	Token          string        `envconfig:"CONTENTMINT_CHAIN_TOKEN" default:"USDC"`
	PlatformWallet string        `envconfig:"CONTENTMINT_CHAIN_PLATFORM_WALLET" required:"true"`
	RequestTimeout time.Duration `envconfig:"CONTENTMINT_CHAIN_REQUEST_TIMEOUT" default:"30s"`
}

type PurchaseConfig struct {
	// StrictAffiliate rejects purchases carrying an invalid or inactive affiliate
	// code instead of silently dropping the commission split.
	StrictAffiliate bool `envconfig:"CONTENTMINT_PURCHASE_STRICT_AFFILIATE" default:"false"`
}

type SettlementConfig struct {
	LedgerRetryAttempts int           `envconfig:"CONTENTMINT_SETTLEMENT_LEDGER_RETRY_ATTEMPTS" default:"3"`
	LedgerRetryBase     time.Duration `envconfig:"CONTENTMINT_SETTLEMENT_LEDGER_RETRY_BASE" default:"50ms"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CONTENTMINT_FEATURE_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CONTENTMINT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CONTENTMINT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CONTENTMINT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
