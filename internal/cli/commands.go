package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/sheets"

	"github.com/spf13/cobra"
)

type syncOutput struct {
	Message   string   `json:"message"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Ignored   int      `json:"ignored"`
	DNNumbers []string `json:"dnNumbers"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the Google Sheet into the database once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}

			res, err := backend.Syncer.Run(cmd.Context(), dnsync.TriggerCLI)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			out := syncOutput{
				Message:   dnsync.SuccessMessage(res),
				Created:   res.Created,
				Updated:   res.Updated,
				Ignored:   res.Ignored(),
				DNNumbers: res.Numbers,
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintln(w, out.Message)
			})
		},
	}
}

type columnsOutput struct {
	SheetColumns   []string `json:"sheetColumns"`
	DynamicColumns []string `json:"dynamicColumns"`
	Added          []string `json:"added,omitempty"`
}

// NewColumnsCommand creates the columns command group.
func NewColumnsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Inspect or extend the dynamic DN columns",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sheet and dynamic columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}

			out := columnsOutput{
				SheetColumns:   backend.Columns.SheetColumns(),
				DynamicColumns: backend.Columns.DynamicColumns(),
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "sheet columns:   %s\n", strings.Join(out.SheetColumns, ", "))
				fmt.Fprintf(w, "dynamic columns: %s\n", strings.Join(out.DynamicColumns, ", "))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>...",
		Short: "Add dynamic columns to the DN table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}

			added, err := backend.Columns.Extend(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := columnsOutput{
				SheetColumns:   backend.Columns.SheetColumns(),
				DynamicColumns: backend.Columns.DynamicColumns(),
				Added:          added,
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				if len(added) == 0 {
					fmt.Fprintln(w, "no new columns")
					return
				}
				fmt.Fprintf(w, "added: %s\n", strings.Join(added, ", "))
			})
		},
	})

	return cmd
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(opts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Mark delivered rows older than the threshold on the sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}

			threshold := days
			if threshold <= 0 {
				threshold = backend.ArchiveDays
			}

			res, err := backend.Archiver.Mark(cmd.Context(), threshold, time.Now())
			if err != nil {
				return fmt.Errorf("archive marking failed: %w", err)
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				printArchive(w, res)
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "threshold in days (defaults to DN_ARCHIVE_THRESHOLD_DAYS)")
	return cmd
}

func printArchive(w io.Writer, res sheets.ArchiveResult) {
	fmt.Fprintf(w, "threshold %s (%d days): matched %d rows, formatted %d\n",
		res.ThresholdDate, res.ThresholdDays, res.MatchedRows, res.FormattedRows)
	for _, sheet := range res.SheetsProcessed {
		fmt.Fprintf(w, "  %s\n", sheet)
	}
}

type migrateOutput struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	report := func(cmd *cobra.Command) error {
		version, dirty, err := opts.migrator.Version()
		if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		out := migrateOutput{Version: version, Dirty: dirty}
		return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(w, "schema version %d (%s)\n", version, state)
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.migrator.Up(cmd.Context()); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return report(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd)
		},
	})

	return cmd
}
