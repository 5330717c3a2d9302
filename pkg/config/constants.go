package config

// EnvPrefix is the envconfig prefix; variables carry it explicitly in tags.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
