package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/config"
	"github.com/jwulff/speakerdash/internal/logging"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiFlag != nil {
			if override := strings.TrimSpace(*c.apiFlag); override != "" {
				cfg.API.BaseURL = strings.TrimRight(override, "/")
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the CLI logger on the command's stderr.
func (c *commandContext) logger(cmd *cobra.Command) (zerolog.Logger, io.Closer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
}

// withClient runs fn with an API client configured from the loaded config.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(*api.Client, zerolog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, closer, err := c.logger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()
	client := newClient(cfg, logger)
	return fn(client, logger)
}

func newClient(cfg *config.Config, logger zerolog.Logger) *api.Client {
	return api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithUploadTimeout(cfg.UploadTimeout()),
		api.WithLogger(logger),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// describeAPIError adds the error kind to a client error for the terminal.
func describeAPIError(action string, err error) error {
	if kind := api.KindOf(err); kind != 0 {
		return fmt.Errorf("%s: %s (%s)", action, api.Detail(err), kind)
	}
	return fmt.Errorf("%s: %w", action, err)
}
