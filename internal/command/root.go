// Package command wires the CLI.
package command

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/manar-alshaikh/rtf-client/internal/api"
	"github.com/manar-alshaikh/rtf-client/internal/core"
	"github.com/manar-alshaikh/rtf-client/internal/logx"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rtf",
		Short:         "Terminal client for the real-time forum",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("server", "", "forum server URL (overrides config)")
	cmd.PersistentFlags().String("cookie", "", "session cookie value (overrides config)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewUnreadCmd())
	cmd.AddCommand(NewCommentsCmd())

	return cmd
}

// resolveConfig merges the config file with flag overrides.
func resolveConfig(cmd *cobra.Command) (core.Config, error) {
	var config core.Config
	stored, err := core.ReadConfig()
	if err != nil {
		return config, err
	}
	if stored != nil {
		config = *stored
	}
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		config.ServerURL = v
	}
	if v, _ := cmd.Flags().GetString("cookie"); v != "" {
		config.SessionCookie = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		config.LogLevel = v
	}
	if config.ServerURL == "" {
		return config, fmt.Errorf("no server configured; run `rtf login --server URL --cookie VALUE`")
	}
	return config, nil
}

// initLogging sets up the file logger from config.
func initLogging(config core.Config) error {
	logFile := config.LogFile
	if logFile == "" {
		path, err := core.DefaultLogPath()
		if err != nil {
			return err
		}
		logFile = path
	}
	_, err := logx.Init(logx.Options{File: logFile, Level: config.LogLevel})
	return err
}

// newClient builds the API client from config.
func newClient(config core.Config) (*api.Client, error) {
	return api.New(config.ServerURL, api.WithSessionCookie(config.SessionCookie))
}

// channelHeader carries the session cookie into the websocket handshake.
func channelHeader(config core.Config) http.Header {
	header := http.Header{}
	if config.SessionCookie != "" {
		header.Set("Cookie", "session_id="+config.SessionCookie)
	}
	return header
}

// storePath resolves the unread store location.
func storePath(config core.Config) (string, error) {
	if config.StorePath != "" {
		return config.StorePath, nil
	}
	return core.DefaultStorePath()
}
