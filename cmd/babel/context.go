package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"babel/internal/config"
)

// commandContext carries the global flags and the lazily loaded config
// shared by every subcommand.
type commandContext struct {
	socketPath string
	configFile string

	once       sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func (c *commandContext) bindFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&c.socketPath, "socket", "", "Path to the babel translation socket")
	flags.StringVarP(&c.configFile, "config", "c", "", "Configuration file path")
}

// ensureConfig loads the configuration once. --socket replaces
// paths.socket_path, and the control socket path follows it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		c.config, c.configPath, c.configErr = c.load()
	})
	return c.config, c.configErr
}

func (c *commandContext) load() (*config.Config, string, error) {
	cfg, path, _, err := config.Load(c.configFlagValue())
	if err != nil {
		return nil, "", err
	}
	if socket := strings.TrimSpace(c.socketPath); socket != "" {
		expanded, err := config.ExpandPath(socket)
		if err != nil {
			return nil, "", fmt.Errorf("resolve socket path: %w", err)
		}
		cfg.Paths.SocketPath = expanded
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func (c *commandContext) configFlagValue() string {
	return strings.TrimSpace(c.configFile)
}

func wrapDialError(err error, socket string) error {
	switch {
	case daemonUnavailable(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `babel start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func daemonUnavailable(err error) bool {
	return errors.Is(err, syscall.ENOENT) || os.IsNotExist(err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
