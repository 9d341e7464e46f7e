package config

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

var validate = validator.New()

type ServerParam struct {
	SyncParam    SyncParam    `yaml:"sync"`
	DisplayParam DisplayParam `yaml:"display"`
	ApiParam     ApiParam     `yaml:"api"`
}

// Durations are in milliseconds unless stated otherwise
type SyncParam struct {
	NatsUrl         string `yaml:"nats_url" validate:"required,url"`
	SubjectPrefix   string `yaml:"subject_prefix" validate:"required"`
	Topic           string `yaml:"topic" validate:"required"`
	Stream          string `yaml:"stream"`
	AssetBucket     string `yaml:"asset_bucket"`
	ConnectTimeout  int64  `yaml:"connect_timeout" validate:"min=1"`
	FetchTimeout    int64  `yaml:"fetch_timeout" validate:"min=0"`
	BackoffInitial  int64  `yaml:"backoff_initial" validate:"min=1"`
	BackoffMax      int64  `yaml:"backoff_max" validate:"gtefield=BackoffInitial"`
	BreakerFailures uint32 `yaml:"breaker_failures"`
	// seconds
	BreakerCooldown int64 `yaml:"breaker_cooldown" validate:"min=0"`
}

func (p SyncParam) ConnectTimeoutDuration() time.Duration {
	return time.Duration(p.ConnectTimeout) * time.Millisecond
}

func (p SyncParam) FetchTimeoutDuration() time.Duration {
	return time.Duration(p.FetchTimeout) * time.Millisecond
}

func (p SyncParam) BackoffInitialDuration() time.Duration {
	return time.Duration(p.BackoffInitial) * time.Millisecond
}

func (p SyncParam) BackoffMaxDuration() time.Duration {
	return time.Duration(p.BackoffMax) * time.Millisecond
}

func (p SyncParam) BreakerCooldownDuration() time.Duration {
	return time.Duration(p.BreakerCooldown) * time.Second
}

type DisplayParam struct {
	TickPeriod int64 `yaml:"tick_period" validate:"min=100"`
	// seconds without interaction before entering ambient mode, 0 disables
	AmbientAfter  int64 `yaml:"ambient_after" validate:"min=0"`
	LowBitAmbient bool  `yaml:"low_bit_ambient"`
	Contrast      uint8 `yaml:"contrast"`
}

func (p DisplayParam) TickPeriodDuration() time.Duration {
	return time.Duration(p.TickPeriod) * time.Millisecond
}

func (p DisplayParam) AmbientAfterDuration() time.Duration {
	return time.Duration(p.AmbientAfter) * time.Second
}

type ApiParam struct {
	Enabled bool   `yaml:"enabled"`
	Port    int64  `yaml:"port" validate:"min=0,max=65535"`
	ApiKey  string `yaml:"api_key" validate:"required_if=Enabled true"`
}

func parseServerParam(raw []byte) (*ServerParam, error) {
	serverParam := &ServerParam{}
	if err := yaml.Unmarshal(raw, serverParam); err != nil {
		return nil, fmt.Errorf("unable to interpret param file: %w", err)
	}
	return serverParam, nil
}

func (p *ServerParam) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid param: %w", err)
	}
	return nil
}
