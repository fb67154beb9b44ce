// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tableconv/config"
	"github.com/cardinalhq/tableconv/convertapi"
	"github.com/cardinalhq/tableconv/internal/scratch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the conversion API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "tableconv"

			logShutdown, err := setupLogging(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer func() {
				if err := logShutdown(); err != nil {
					slog.Error("Error shutting down logging", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			doneCtx, doneCancel := handleSignals(context.Background())
			defer doneCancel()

			mgr, err := scratch.NewManager(cfg.Scratch.Root)
			if err != nil {
				return fmt.Errorf("failed to create scratch manager: %w", err)
			}
			defer func() {
				if err := mgr.Sweep(); err != nil {
					slog.Error("Failed to sweep scratch root", slog.Any("error", err))
				}
			}()

			svc, err := convertapi.NewService(cfg, mgr)
			if err != nil {
				return fmt.Errorf("failed to create conversion service: %w", err)
			}

			slog.Info("Starting conversion API server",
				slog.String("addr", cfg.Server.Addr),
				slog.String("scratch", mgr.Root()))
			return svc.Run(doneCtx)
		},
	}
	rootCmd.AddCommand(cmd)
}
