// Package cli wires the teleecho commands: relaying stdin to a stored
// connection, and managing connections.
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teleecho/internal/pairing"
	kit "teleecho/internal/transport"
	"teleecho/internal/transport/telegram/adapter"
	logx "teleecho/pkg/logx"
	"teleecho/pkg/systemd"
)

const envPrefix = "TELEECHO"

// ClientFactory builds the Telegram client for a token.
type ClientFactory func(cfg adapter.Config, log logx.Logger) (kit.Client, error)

func telegramClient(cfg adapter.Config, log logx.Logger) (kit.Client, error) {
	a, err := adapter.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type Option func(*app)

func WithClientFactory(fn ClientFactory) Option {
	return func(a *app) { a.newClient = fn }
}

// WithStdin replaces the relayed input stream.
func WithStdin(r io.Reader) Option {
	return func(a *app) { a.stdin = r }
}

// WithPairingOptions adds options to every pairing handshake.
func WithPairingOptions(opts ...pairing.Option) Option {
	return func(a *app) { a.pairOpts = append(a.pairOpts, opts...) }
}

// Execute runs the command line until ctx is done.
func Execute(ctx context.Context, args []string, opts ...Option) error {
	root := NewRootCmd(opts...)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{
		v:         viper.New(),
		newClient: telegramClient,
		stdin:     os.Stdin,
		notifier:  systemd.New(),
	}
	for _, fn := range opts {
		fn(a)
	}

	rootCmd := &cobra.Command{
		Use:   "teleecho [CONNECTION]",
		Short: "Forward stdin to a Telegram chat",
		Long: "teleecho relays its standard input to the Telegram chat of a stored connection.\n" +
			"Lines are batched into few messages; a line starting with a carriage return\n" +
			"overwrites the last line of the previous message, so progress bars stay readable.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runRelay,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to the connection file (default ~/.teleecho.conf)")
	flags.String("settings", "", "path to a JSON or YAML settings file")
	flags.String("log-level", "", "log level override (trace|debug|info|warn|error)")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	rootCmd.AddCommand(
		newNewCmd(a),
		newListCmd(a),
		newRemoveCmd(a),
	)
	return rootCmd
}
