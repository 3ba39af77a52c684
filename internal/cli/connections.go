package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"teleecho/internal/pairing"
	"teleecho/internal/storage"
	"teleecho/internal/transport/telegram/adapter"
)

func newNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new TOKEN NAME",
		Short: "Pair a bot token with your chat and store it as NAME",
		Long: "new prints a number; send it to the bot from the chat that should receive\n" +
			"the output. Whitespace in NAME is replaced by '-'.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			token, name := args[0], storage.NormalizeName(args[1])
			if name == "" {
				return errors.New("connection name is empty")
			}
			if _, err := a.store.Lookup(ctx, name); err == nil {
				return fmt.Errorf("name already taken: %w", storage.ErrExists)
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			cfg := a.settings.Get()
			timeout, _ := cfg.Telegram.Timeout()
			client, err := a.newClient(adapter.Config{
				Token:       token,
				PollTimeout: timeout,
				APIURL:      cfg.Telegram.APIURL,
			}, a.log)
			if err != nil {
				return fmt.Errorf("while creating bot instance: %w", err)
			}

			opts := append([]pairing.Option{
				pairing.WithLogger(a.log),
				pairing.WithOutput(cmd.OutOrStdout()),
			}, a.pairOpts...)
			res, err := pairing.Run(ctx, client, token, opts...)
			if err != nil {
				return err
			}
			if err := a.store.Add(ctx, storage.Connection{Name: name, Token: res.Token, ChatID: res.ChatID}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "new connection successfully created: %s\n", name)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()

			conns, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range conns {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), c.Name)
			}
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.close()
			return a.store.Remove(cmd.Context(), args[0])
		},
	}
}
