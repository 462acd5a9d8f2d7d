// Package config assembles runtime configuration for the CLI from
// viper-bound flags and environment variables.
package config

import (
	"github.com/spf13/viper"

	"act-reconciliation-service/internal/completion"
	"act-reconciliation-service/internal/server"
	"act-reconciliation-service/internal/sysindex"
	"act-reconciliation-service/pkg/logger"
)

// SetupLogger configures the global logger from the verbose flag.
func SetupLogger() (logger.Logger, error) {
	cfg := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		cfg.Level = logger.DebugLevel
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetGlobalLogger(log)
	return log, nil
}

// CreateCompletionConfig builds the completion service configuration.
// The config is returned unvalidated: commands that never call the
// service run fine without credentials.
func CreateCompletionConfig() *completion.Config {
	cfg := completion.DefaultConfig()
	cfg.APIKey = viper.GetString("api-key")
	cfg.FolderID = viper.GetString("folder-id")
	if model := viper.GetString("model"); model != "" {
		cfg.Model = model
	}
	if endpoint := viper.GetString("endpoint"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	return cfg
}

// CreateCompletionClient returns a client when credentials are
// present, nil otherwise.
func CreateCompletionClient(cfg *completion.Config) (completion.Client, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	return completion.NewHTTPClient(cfg)
}

// CreatePipeline wires the processing pipeline with the default
// system registry.
func CreatePipeline(log logger.Logger) (*server.Pipeline, error) {
	ccfg := CreateCompletionConfig()
	client, err := CreateCompletionClient(ccfg)
	if err != nil {
		return nil, err
	}
	return server.NewPipeline(client, ccfg, sysindex.DefaultRegistry(), log), nil
}
