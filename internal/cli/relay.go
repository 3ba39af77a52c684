package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"teleecho/internal/config"
	"teleecho/internal/relay"
	rtsup "teleecho/internal/runtime/supervisor"
	kit "teleecho/internal/transport"
	"teleecho/internal/transport/telegram/adapter"
	logx "teleecho/pkg/logx"
)

func (a *app) runRelay(cmd *cobra.Command, args []string) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	conn, err := a.store.Lookup(ctx, name)
	if err != nil {
		return fmt.Errorf("while retrieving connection: %w", err)
	}

	cfg := a.settings.Get()
	interval, _ := cfg.Relay.Interval()
	client, err := a.newClient(adapter.Config{
		Token:   conn.Token,
		APIURL:  cfg.Telegram.APIURL,
		Offline: true,
	}, a.log)
	if err != nil {
		return fmt.Errorf("while creating bot instance: %w", err)
	}

	log := a.log.With(logx.String("connection", conn.Name))
	p := relay.Start(ctx, client, kit.ChatTarget{ChatID: conn.ChatID},
		relay.WithLogger(log),
		relay.WithSendInterval(interval),
		relay.WithCollapseOverwrites(cfg.Relay.CollapseOverwrites),
	)
	defer p.Close()

	sup := rtsup.New(ctx, rtsup.WithLogger(log))
	defer func() {
		sup.Cancel()
		_ = sup.Wait(context.Background())
	}()
	if a.settings.Path() != "" {
		a.settings.SetLogger(log)
		updates := a.settings.Subscribe(1)
		defer a.settings.Unsubscribe(updates)
		sup.Go("settings.watch", a.settings.Watch)
		sup.Go0("settings.apply", func(ctx context.Context) {
			prev := cfg
			for {
				select {
				case <-ctx.Done():
					return
				case next, ok := <-updates:
					if !ok {
						return
					}
					a.applySettings(p, prev, next)
					prev = next
				}
			}
		})
	}

	if _, err := a.notifier.Ready("relaying to " + conn.Name); err != nil {
		log.Debug("sd_notify ready failed", logx.Err(err))
	}
	defer func() { _, _ = a.notifier.Stopping() }()

	// ReadFrom blocks on stdin; on interrupt the reader goroutine is left to
	// end with the process.
	done := make(chan error, 1)
	go func() {
		_, err := p.ReadFrom(a.stdin)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, relay.ErrClosed) {
			_ = p.Close()
			return fmt.Errorf("while reading input: %w", err)
		}
	case <-ctx.Done():
		log.Info("interrupted; stopping relay")
	}

	if err := p.Close(); err != nil {
		return err
	}
	st := p.Stats()
	log.Debug("relay finished",
		logx.Any("sent", st.Sent),
		logx.Any("edited", st.Edited),
		logx.Any("failed", st.Failed),
	)
	return nil
}

// applySettings applies the live-reloadable part of a settings change.
func (a *app) applySettings(p *relay.Processor, prev, next *config.Config) {
	changed, attrs := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		return
	}
	a.log.Info("settings reloaded", append(attrs, logx.Any("changed", changed))...)

	if slices.Contains(changed, "logging") {
		a.logs.Apply(a.logConfig(next))
	}
	if slices.Contains(changed, "relay") {
		if d, err := next.Relay.Interval(); err == nil {
			p.SetSendInterval(d)
		}
		if prev.Relay.CollapseOverwrites != next.Relay.CollapseOverwrites {
			a.log.Warn("relay.collapse_overwrites applies on next start")
		}
	}
	for _, section := range []string{"telegram", "storage"} {
		if slices.Contains(changed, section) {
			a.log.Warn("settings section applies on next start", logx.String("section", section))
		}
	}
}
