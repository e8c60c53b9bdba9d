package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/fold"
	"github.com/foldnet/gameserver/internal/query"
)

// queryCmd subscribes to a module's live query results, printing one
// line per fold advance until interrupted.
func queryCmd() *cobra.Command {
	var moduleID string

	cmd := &cobra.Command{
		Use:   "query <payload-json>",
		Short: "Stream query responses as the fold advances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !json.Valid([]byte(args[0])) {
				return fmt.Errorf("payload is not valid JSON: %s", args[0])
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			log, err := buildActionLog(ctx, cfg.ActionLog)
			if err != nil {
				return fmt.Errorf("build action log: %w", err)
			}
			defer log.Close()

			provider, err := buildModuleProvider(ctx, cfg.ModuleProvider)
			if err != nil {
				return fmt.Errorf("build module provider: %w", err)
			}

			runner := buildSandboxRunner(cfg.Sandbox, provider, nil)
			manager := fold.NewManager(log, runner)

			id := domain.ModuleId(moduleID)
			if id == "" {
				id, err = provider.Default(ctx)
				if err != nil {
					return fmt.Errorf("resolve default module: %w", err)
				}
			}

			snapshots := manager.Join(ctx, id)
			items := query.Subscribe(ctx, runner, id, snapshots, domain.QueryBlob(args[0]))

			for item := range items {
				if item.Err != nil {
					return item.Err
				}
				fmt.Println(string(item.Response))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&moduleID, "module", "", "module id (defaults to the provider's default)")

	return cmd
}
