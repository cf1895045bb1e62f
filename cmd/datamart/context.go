package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"datamart/internal/api"
	"datamart/internal/config"
	"datamart/internal/fulfillment"
)

type commandContext struct {
	endpointFlag *string
	configFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(endpointFlag, configFlag *string) *commandContext {
	return &commandContext{
		endpointFlag: endpointFlag,
		configFlag:   configFlag,
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
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) endpoint() (string, error) {
	if c.endpointFlag != nil {
		if value := strings.TrimSpace(*c.endpointFlag); value != "" {
			return value, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.APIBaseURL(), nil
}

func (c *commandContext) client() (*api.Client, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(endpoint, cfg.Paths.APIToken), nil
}

// parseTransactionArgs validates `<kind> <id>` positional arguments.
func parseTransactionArgs(args []string) (fulfillment.Kind, int64, error) {
	kind, err := fulfillment.ParseKind(args[0])
	if err != nil {
		return "", 0, fmt.Errorf("%w (expected item or order)", err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
	if err != nil || id < 0 {
		return "", 0, fmt.Errorf("invalid transaction id %q", args[1])
	}
	return kind, id, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
