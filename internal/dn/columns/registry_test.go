package columns

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type fakeMigrator struct {
	columns []string
	added   []string
	failAdd error
}

func (f *fakeMigrator) ListDNColumns(context.Context) ([]string, error) {
	return slices.Clone(f.columns), nil
}

func (f *fakeMigrator) AddDNTextColumn(_ context.Context, name string) error {
	if f.failAdd != nil {
		return f.failAdd
	}
	f.added = append(f.added, name)
	f.columns = append(f.columns, name)
	return nil
}

func TestPositionsFollowSheetLayout(t *testing.T) {
	reg := NewRegistry(&fakeMigrator{})
	if got := reg.Position("dn_number"); got != 1 {
		t.Fatalf("expected dn_number at 1, got %d", got)
	}
	if got := reg.Position("status_delivery"); got != 22 {
		t.Fatalf("expected status_delivery at 22, got %d", got)
	}
	if got := reg.Position("plan_mos_date"); got != 32 {
		t.Fatalf("expected plan_mos_date at 32, got %d", got)
	}
	if got := reg.Position("remark"); got != 0 {
		t.Fatalf("expected non-sheet column at 0, got %d", got)
	}
}

func TestMutableColumnsExcludeImmutable(t *testing.T) {
	reg := NewRegistry(&fakeMigrator{})
	for _, name := range []string{"dn_number", "id", "created_at", "is_deleted", "update_count"} {
		if reg.IsMutable(name) {
			t.Fatalf("expected %s to be immutable for sync", name)
		}
	}
	for _, name := range []string{"status_delivery", "driver_contact_number", "remark", "gs_row"} {
		if !reg.IsMutable(name) {
			t.Fatalf("expected %s to be mutable", name)
		}
	}
}

func TestAddColumnIfAbsentIsIdempotent(t *testing.T) {
	migrator := &fakeMigrator{}
	reg := NewRegistry(migrator)
	before := reg.Version()

	added, err := reg.AddColumnIfAbsent(context.Background(), "vendor_ref")
	if err != nil || !added {
		t.Fatalf("expected column added, got %v %v", added, err)
	}
	added, err = reg.AddColumnIfAbsent(context.Background(), "vendor_ref")
	if err != nil || added {
		t.Fatalf("expected second add to be a no-op, got %v %v", added, err)
	}
	if len(migrator.added) != 1 {
		t.Fatalf("expected one migration, got %v", migrator.added)
	}
	if reg.Version() != before+1 {
		t.Fatalf("expected version bump once, got %d -> %d", before, reg.Version())
	}
	cols := reg.SheetColumns()
	if cols[len(cols)-1] != "vendor_ref" || reg.Position("vendor_ref") != len(BaseSheetColumns)+1 {
		t.Fatalf("expected dynamic column appended, got %v", cols)
	}
}

func TestAddColumnRejectsInvalidNames(t *testing.T) {
	migrator := &fakeMigrator{}
	reg := NewRegistry(migrator)
	for _, name := range []string{"", "1col", "drop table", `x"; --`} {
		if _, err := reg.AddColumnIfAbsent(context.Background(), name); !errors.Is(err, ErrInvalidColumnName) {
			t.Fatalf("expected ErrInvalidColumnName for %q, got %v", name, err)
		}
	}
	if len(migrator.added) != 0 {
		t.Fatal("expected no migrations for invalid names")
	}
}

func TestAddColumnTreatsKnownAsExisting(t *testing.T) {
	migrator := &fakeMigrator{}
	reg := NewRegistry(migrator)
	added, err := reg.AddColumnIfAbsent(context.Background(), "remark")
	if err != nil || added {
		t.Fatalf("expected no-op for core column, got %v %v", added, err)
	}
	if len(migrator.added) != 0 {
		t.Fatal("expected no migration for known column")
	}
}

func TestExtendValidatesBeforeMigrating(t *testing.T) {
	migrator := &fakeMigrator{}
	reg := NewRegistry(migrator)
	if _, err := reg.Extend(context.Background(), []string{"ok_col", "bad col"}); err == nil {
		t.Fatal("expected validation error")
	}
	if len(migrator.added) != 0 {
		t.Fatal("expected nothing added when a name is invalid")
	}

	added, err := reg.Extend(context.Background(), []string{"ok_col", "lsp", "ok_col"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(added, []string{"ok_col"}) {
		t.Fatalf("expected only ok_col added, got %v", added)
	}
}

func TestRefreshLoadsDynamicColumns(t *testing.T) {
	migrator := &fakeMigrator{columns: slices.Concat([]string{"id", "gs_row", "is_deleted"}, BaseSheetColumns, []string{"extra_note"})}
	reg := NewRegistry(migrator)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !slices.Equal(reg.DynamicColumns(), []string{"extra_note"}) {
		t.Fatalf("expected extra_note, got %v", reg.DynamicColumns())
	}
	v := reg.Version()
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if reg.Version() != v {
		t.Fatal("expected version unchanged when schema is unchanged")
	}
}
