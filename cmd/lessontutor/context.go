package main

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/config"
	logpkg "github.com/kailas-cloud/lessontutor/internal/logger"
)

type configLoader func(env string) (config.Config, error)

type commandContext struct {
	envFlag *string
	load    configLoader

	once   sync.Once
	config *config.Config
	logger *zap.Logger
	err    error
}

func newCommandContext(envFlag *string, load configLoader) *commandContext {
	if load == nil {
		load = config.Load
	}
	return &commandContext{envFlag: envFlag, load: load}
}

func (c *commandContext) env() string {
	if c.envFlag != nil {
		if env := strings.TrimSpace(*c.envFlag); env != "" {
			return env
		}
	}
	return config.GetEnv()
}

// ensureConfig loads the configuration and logger once per process.
func (c *commandContext) ensureConfig() (*config.Config, *zap.Logger, error) {
	c.once.Do(func() {
		env := c.env()
		cfg, err := c.load(env)
		if err != nil {
			c.err = err
			return
		}
		logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			c.err = err
			return
		}
		c.config = &cfg
		c.logger = logger
	})
	return c.config, c.logger, c.err
}

func (c *commandContext) sync() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
