package app

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	KeymapPath    string // hcl file or directory of hcl files
	WorkspacePath string // archive to load on start and save to; empty starts blank
	WatchKeymap   bool   // live-reload the keymap on file changes

	LogFormat string
	LogLevel  string
	EmitURL   string // socket.io endpoint for ChangeSet streaming; empty disables
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.KeymapPath, validation.Required),
		validation.Field(&cfg.LogFormat, validation.In("text", "json")),
		validation.Field(&cfg.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&cfg.EmitURL, is.RequestURI),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
