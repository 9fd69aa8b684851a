package notifier_config

import (
	"time"

	pginfra "github.com/cealhq/club-calendar/internal/repository/postgres"
	"github.com/cealhq/club-calendar/internal/obs"
)

type SMTP struct {
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

type KafkaOut struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Dispatch struct {
	// CronSpec drives the tick; the default fires once per minute.
	CronSpec    string `mapstructure:"cron_spec"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	// FrontendURL is linked from every digest email.
	FrontendURL string `mapstructure:"frontend_url"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
	Ver    string `mapstructure:"ver"`
}

func (l Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{Level: l.Level, Pretty: l.Pretty, App: "club-notifier", Env: l.Env, Ver: l.Ver}
}

type OTEL struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"otlp_endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func (o OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.Endpoint,
		ServiceName: o.ServiceName,
		SampleRatio: o.SampleRatio,
	}
}

type Config struct {
	DB       pginfra.Config `mapstructure:"db"`
	SMTP     SMTP           `mapstructure:"smtp"`
	Kafka    KafkaOut       `mapstructure:"kafka_out"`
	Dispatch Dispatch       `mapstructure:"dispatch"`
	Outbox   Outbox         `mapstructure:"outbox"`
	Log      Log            `mapstructure:"log"`
	OTEL     OTEL           `mapstructure:"otel"`
}
