// Package cli implements the dnctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/sheets"

	"github.com/spf13/cobra"
)

// Syncer runs a sheet sync.
type Syncer interface {
	Run(ctx context.Context, trigger dnsync.Trigger) (reconcile.Result, error)
}

// Columns manages the dynamic DN columns.
type Columns interface {
	SheetColumns() []string
	DynamicColumns() []string
	Extend(ctx context.Context, names []string) ([]string, error)
}

// Archiver marks old delivered rows.
type Archiver interface {
	Mark(ctx context.Context, thresholdDays int, now time.Time) (sheets.ArchiveResult, error)
}

// Migrator applies and reports schema migrations. It works without the
// DN tables, so it is kept apart from Backend.
type Migrator interface {
	Up(ctx context.Context) error
	Version() (version uint, dirty bool, err error)
}

// Backend is what the commands operate on.
type Backend struct {
	Syncer      Syncer
	Columns     Columns
	Archiver    Archiver
	ArchiveDays int
	Close       func()
}

// Connect builds a Backend. It runs once before any subcommand.
type Connect func(ctx context.Context) (*Backend, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"

	connect  Connect
	migrator Migrator
	backend  *Backend
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the dnctl root command.
func NewRootCommand(connect Connect, migrator Migrator) *cobra.Command {
	opts := &RootOptions{connect: connect, migrator: migrator}

	cmd := &cobra.Command{
		Use:           "dnctl",
		Short:         "Operate the DN tracker",
		Long:          "Operator commands for sheet syncs, dynamic columns, archive marking and schema migrations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.backend != nil && opts.backend.Close != nil {
				opts.backend.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewColumnsCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (o *RootOptions) open(ctx context.Context) (*Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}
	backend, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}
	o.backend = backend
	return backend, nil
}

// print writes v as JSON or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
