package configuration

import (
	"time"

	"github.com/adampresley/configinator"
)

type Config struct {
	AccessRateLimit    int    `flag:"accessratelimit" env:"ACCESS_RATE_LIMIT" default:"60" description:"Client requests allowed per minute per tenant and address"`
	AwsEndpointUrl     string `flag:"awsep" env:"AWS_ENDPOINT_URL" default:"http://localhost:4566" description:"AWS endpoint URL"`
	AwsRegion          string `flag:"awsregion" env:"AWS_REGION" default:"us-central-1" description:"AWS region"`
	AwsAccessKeyId     string `flag:"awsaccesskeyid" env:"AWS_ACCESS_KEY_ID" default:"" description:"AWS access key ID"`
	AwsSecretAccessKey string `flag:"awssecretaccesskey" env:"AWS_SECRET_ACCESS_KEY" default:"" description:"AWS secret access key"`
	AwsBucket          string `flag:"awsbucket" env:"AWS_BUCKET" default:"proofingdesk" description:"S3 bucket"`
	BaseURL            string `flag:"baseurl" env:"BASE_URL" default:"http://localhost:8081" description:"Public URL used in emailed links"`
	CookieSecret       string `flag:"cookiesecret" env:"COOKIE_SECRET" default:"password" description:"Secret for encoding cookies"`
	DSN                string `flag:"dsn" env:"DSN" default:"file:./data/proofingdesk.db" description:"Data source name"`
	EmailApiKey        string `flag:"emailapikey" env:"EMAIL_API_KEY" default:"" description:"API key for sending emails. Leave empty to disable email"`
	FromEmail          string `flag:"fromemail" env:"FROM_EMAIL" default:"noreply@proofingdesk.local" description:"Address notification emails are sent from"`
	FromName           string `flag:"fromname" env:"FROM_NAME" default:"Proofing Desk" description:"Name notification emails are sent from"`
	Host               string `flag:"host" env:"HOST" default:"localhost:8081" description:"The address and port to bind the HTTP server to"`
	LogLevel           string `flag:"loglevel" env:"LOG_LEVEL" default:"debug" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'"`
	MaxMailWorkers     int    `flag:"mmw" env:"MAX_MAIL_WORKERS" default:"2" description:"Maximum number of concurrent email senders"`
	MaxPreviewWorkers  int    `flag:"mpw" env:"MAX_PREVIEW_WORKERS" default:"8" description:"Maximum number of concurrent preview workers"`
	MaxSweepWorkers    int    `flag:"msw" env:"MAX_SWEEP_WORKERS" default:"4" description:"Maximum number of sessions the deadline sweeper handles at once"`
	PreviewMinutes     int    `flag:"previewminutes" env:"PREVIEW_MINUTES" default:"10" description:"How often, in minutes, missing previews are built"`
	SweepMinutes       int    `flag:"sweepminutes" env:"SWEEP_MINUTES" default:"15" description:"How often, in minutes, selection deadlines are checked"`
	WarningHours       int    `flag:"warninghours" env:"WARNING_HOURS" default:"72" description:"How many hours before a deadline the warning is sent"`
}

func LoadConfig() Config {
	config := Config{}
	configinator.Behold(&config)
	return config
}

func (c Config) PreviewInterval() time.Duration {
	return time.Duration(max(1, c.PreviewMinutes)) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(max(1, c.SweepMinutes)) * time.Minute
}

func (c Config) WarningWindow() time.Duration {
	return time.Duration(max(1, c.WarningHours)) * time.Hour
}
