// Package cli implements the tasktie command line: board inspection, task
// creation and moves, activity and an MCP stdio server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"managehub/internal/config"
	"managehub/internal/db"
	"managehub/pkg/board"
	"managehub/pkg/reference"
)

// NewRootCmd builds the tasktie command tree.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tasktie",
		Short:         "tasktie - kanban board for maintenance tasks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default .managehub/config.yaml)")

	env := &env{configPath: &configPath, version: version}
	root.AddCommand(initCmd(env))
	root.AddCommand(boardCmd(env))
	root.AddCommand(searchCmd(env))
	root.AddCommand(taskCmd(env))
	root.AddCommand(activityCmd(env))
	root.AddCommand(mcpCmd(env))
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

type env struct {
	configPath *string
	version    string
}

// session is an opened backend with a loaded board.
type session struct {
	cfg    *config.Config
	log    *log.Logger
	stores *db.Stores
	refs   reference.Provider
	board  *board.Board
	close  func()
}

func (e *env) open(ctx context.Context, source string) (*session, error) {
	cfg, err := config.Load(*e.configPath)
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger()
	logger.SetOutput(os.Stderr)

	stores, err := db.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := stores.EnsureTables(ctx); err != nil {
		stores.Close()
		return nil, err
	}
	refs, closeRefs := stores.References(ctx, cfg.Redis, logger)

	b := board.New(stores.Tasks,
		board.WithReferences(refs),
		board.WithRecorder(stores.Activity),
		board.WithLogger(logger),
		board.WithTimeout(cfg.Board.RequestTimeout),
		board.WithSource(source),
	)
	if err := b.Init(ctx); err != nil {
		closeRefs()
		stores.Close()
		return nil, err
	}

	return &session{
		cfg:    cfg,
		log:    logger,
		stores: stores,
		refs:   refs,
		board:  b,
		close: func() {
			closeRefs()
			stores.Close()
		},
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncStr shortens s to at most n runes.
func truncStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printView(w io.Writer, v board.View) {
	for _, col := range v.Columns {
		fmt.Fprintln(w, col.Label)
		for _, c := range col.Cards {
			fmt.Fprintf(w, "  %-8s  %-6s  %-40s  %-20s  %s\n",
				truncStr(c.ID, 8), c.Priority, truncStr(c.Title, 40), truncStr(c.Assignee, 20), c.DueDate)
		}
	}
}
