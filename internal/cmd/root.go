package cmd

import (
	"github.com/spf13/cobra"

	"github.com/andrej220/sshop/pkg/lg"
)

const SERVICENAME = "sshop"

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	debug     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sshop",
	Short: "Run a shell command on a remote host over ssh",
	Long: `sshop connects to one host, authenticates with a password or a key pair
from the secret store, runs one command and fails unless it exits with 0.

Only the connection is retried. Host keys are NOT verified unless the task
sets known_hosts.

Commands:
  run      Run the task described by a file or a MongoDB document
  worker   Run tasks received from Kafka

Secrets are read from the "ssh" namespace of the secrets file and from
environment variables named SSHOP_SECRET_SSH_<NAME>, e.g.
SSHOP_SECRET_SSH_PASSWORD or SSHOP_SECRET_SSH_PRIVATE_KEY.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "json or console")
}

func newLogger(service string) lg.Logger {
	return lg.New(&lg.Config{ServiceName: service, Debug: debug, Format: logFormat})
}
