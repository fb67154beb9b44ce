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
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/cardinalhq/tableconv/internal/idgen"
)

var myInstanceID int64

// setupLogging configures the default slog logger for the named service.
// Log lines go to stdout as text; when TABLECONV_LOG_FILE is set, a JSON
// copy is fanned out to that file as well. Returns a shutdown function
// that closes the log file if one was opened.
func setupLogging(servicename string) (func() error, error) {
	myInstanceID = idgen.DefaultFlakeGenerator.NextID()

	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("TABLECONV_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	shutdown := func() error { return nil }

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if logFile := os.Getenv("TABLECONV_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		handler = slogmulti.Fanout(
			slog.NewTextHandler(os.Stdout, opts),
			slog.NewJSONHandler(f, opts),
		)
		shutdown = f.Close
	}

	slog.SetDefault(slog.New(handler).With(
		slog.String("service", servicename),
		slog.Int64("instanceID", myInstanceID),
	))

	return shutdown, nil
}
