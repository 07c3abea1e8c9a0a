package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR,default=:8080" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT,default=console" validate:"oneof=console json"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=*"`
	StaticDir       string        `env:"STATIC_DIR"`
	WSReadLimit     int64         `env:"WS_READ_LIMIT_BYTES,default=65536" validate:"gt=0"`
	WSSendBuffer    int           `env:"WS_SEND_BUFFER,default=64" validate:"gt=0"`
	WSWriteWait     time.Duration `env:"WS_WRITE_WAIT,default=10s" validate:"gt=0"`
	WSPongWait      time.Duration `env:"WS_PONG_WAIT,default=60s" validate:"gt=0"`
	WSPingPeriod    time.Duration `env:"WS_PING_PERIOD,default=54s" validate:"gt=0,ltfield=WSPongWait"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
}

// Load reads the process environment. A .env file, if any, must already have
// been loaded by the caller.
func Load() (Config, error) {
	var c Config
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Origins splits ALLOWED_ORIGINS. "*" allows any origin.
func (c Config) Origins() []string {
	parts := lo.Map(strings.Split(c.AllowedOrigins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}
