package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldnet/gameserver/internal/action"
	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/fold"
)

// actCmd runs a single action against a locally constructed action log,
// module provider, and sandbox runner, printing the response — useful
// for exercising a module's behavior without a running daemon.
func actCmd() *cobra.Command {
	var moduleID string

	cmd := &cobra.Command{
		Use:   "act <payload-json>",
		Short: "Append one action and print its response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()

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
			handler := action.New(log, provider, manager.Join)

			if !json.Valid([]byte(args[0])) {
				return fmt.Errorf("payload is not valid JSON: %s", args[0])
			}

			resp, err := handler.Handle(ctx, domain.ModuleId(moduleID), domain.ActionBlob(args[0]))
			if err != nil {
				return err
			}

			fmt.Println(string(resp))
			return nil
		},
	}

	cmd.Flags().StringVar(&moduleID, "module", "", "module id (defaults to the provider's default)")

	return cmd
}
