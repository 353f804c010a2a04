package config

// EnvPrefix is intentionally empty because every field names its variable
// explicitly with the CONTENTMINT_ prefix.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CONTENTMINT_DB_DSN"
	EnvDBHost = "CONTENTMINT_DB_HOST"
	EnvDBUser = "CONTENTMINT_DB_USER"
	EnvDBName = "CONTENTMINT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
