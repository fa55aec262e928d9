// Package columns keeps the DN column schema: the fixed sheet layout plus
// text columns added at runtime.
package columns

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
)

// ErrInvalidColumnName is returned for names that are not plain SQL identifiers.
var ErrInvalidColumnName = errors.New("invalid column name")

// BaseSheetColumns is the fixed sheet layout, in column order.
var BaseSheetColumns = []string{
	"dn_number",
	"du_id",
	"status_wh",
	"lsp",
	"area",
	"mos_given_time",
	"expected_arrival_time_from_project",
	"project_request",
	"distance_poll_mover_to_site",
	"driver_contact_name",
	"driver_contact_number",
	"delivery_type_a_to_b",
	"transportation_time",
	"estimate_depart_from_start_point_etd",
	"estimate_arrive_sites_time_eta",
	"lsp_tracker",
	"hw_tracker",
	"actual_depart_from_start_point_atd",
	"actual_arrive_time_ata",
	"subcon",
	"subcon_receiver_contact_number",
	"status_delivery",
	"issue_remark",
	"mos_attempt_1st_time",
	"mos_attempt_2nd_time",
	"mos_attempt_3rd_time",
	"mos_attempt_4th_time",
	"mos_attempt_5th_time",
	"mos_attempt_6th_time",
	"mos_type",
	"region",
	"plan_mos_date",
}

// CoreTextColumns are stored on every DN but never read from the sheet.
var CoreTextColumns = []string{
	"status",
	"status_site",
	"remark",
	"photo_url",
	"lng",
	"lat",
	"last_updated_by",
	"gs_sheet",
}

const (
	// IdentifierColumn holds the normalized DN number.
	IdentifierColumn = "dn_number"
	// RowColumn is the 1-based sheet row the DN was last read from.
	RowColumn = "gs_row"
	// SheetColumn is the worksheet title the DN was last read from.
	SheetColumn = "gs_sheet"
	// StatusDeliveryColumn is the canonicalized delivery status.
	StatusDeliveryColumn = "status_delivery"
	// ProtectedContactColumn is operator-owned once a DN has history.
	ProtectedContactColumn = "driver_contact_number"
	// PlanDateColumn holds the planned MOS date.
	PlanDateColumn = "plan_mos_date"
)

var (
	immutableColumns   = toSet("id", IdentifierColumn, "created_at")
	bookkeepingColumns = toSet("is_deleted", "update_count", "updated_at")
	columnNameRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// DateColumns are reformatted to the display date layout by sync.
var DateColumns = []string{PlanDateColumn}

// Migrator persists schema changes for the dn table.
type Migrator interface {
	// ListDNColumns returns the dn table's column names in ordinal order.
	ListDNColumns(ctx context.Context) ([]string, error)
	// AddDNTextColumn adds a nullable TEXT column if it is missing.
	AddDNTextColumn(ctx context.Context, name string) error
}

// Registry is the live column schema. It is safe for concurrent use.
type Registry struct {
	migrator Migrator

	mu      sync.RWMutex
	dynamic []string
	version int64
}

// NewRegistry creates a registry with no dynamic columns. Call Refresh to
// load columns added by earlier runs.
func NewRegistry(migrator Migrator) *Registry {
	return &Registry{migrator: migrator, version: 1}
}

// ValidateName checks that name can be used as a column identifier.
func ValidateName(name string) error {
	if !columnNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidColumnName, name)
	}
	return nil
}

// IsKnown reports whether name is a base, core or bookkeeping column.
func IsKnown(name string) bool {
	if slices.Contains(BaseSheetColumns, name) || slices.Contains(CoreTextColumns, name) {
		return true
	}
	if _, ok := immutableColumns[name]; ok {
		return true
	}
	if _, ok := bookkeepingColumns[name]; ok {
		return true
	}
	return name == RowColumn
}

// SheetColumns returns the sheet layout: base columns then dynamic ones.
func (r *Registry) SheetColumns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(BaseSheetColumns)+len(r.dynamic))
	out = append(out, BaseSheetColumns...)
	return append(out, r.dynamic...)
}

// DynamicColumns returns the columns added at runtime.
func (r *Registry) DynamicColumns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.dynamic)
}

// MutableColumns lists every column sync may assign.
func (r *Registry) MutableColumns() []string {
	var out []string
	for _, name := range r.SheetColumns() {
		if _, ok := immutableColumns[name]; ok {
			continue
		}
		out = append(out, name)
	}
	out = append(out, CoreTextColumns...)
	return append(out, RowColumn)
}

// IsMutable reports whether sync may assign name.
func (r *Registry) IsMutable(name string) bool {
	return slices.Contains(r.MutableColumns(), name)
}

// Position returns the 1-based sheet column of name, or 0 if it is not a
// sheet column.
func (r *Registry) Position(name string) int {
	idx := slices.Index(r.SheetColumns(), name)
	return idx + 1
}

// StoredTextColumns lists every TEXT column on dn other than dn_number.
func (r *Registry) StoredTextColumns() []string {
	sheet := r.SheetColumns()
	out := make([]string, 0, len(sheet)+len(CoreTextColumns))
	for _, name := range sheet {
		if name == IdentifierColumn {
			continue
		}
		out = append(out, name)
	}
	return append(out, CoreTextColumns...)
}

// Version changes whenever the schema does.
func (r *Registry) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Refresh reloads dynamic columns from the database.
func (r *Registry) Refresh(ctx context.Context) error {
	names, err := r.migrator.ListDNColumns(ctx)
	if err != nil {
		return fmt.Errorf("list dn columns: %w", err)
	}
	var dynamic []string
	for _, name := range names {
		if !IsKnown(name) {
			dynamic = append(dynamic, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Equal(dynamic, r.dynamic) {
		r.dynamic = dynamic
		r.version++
	}
	return nil
}

// AddColumnIfAbsent adds a dynamic TEXT column. It reports whether the
// column was new. Known columns count as existing.
func (r *Registry) AddColumnIfAbsent(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	if IsKnown(name) {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.dynamic, name) {
		return false, nil
	}
	if err := r.migrator.AddDNTextColumn(ctx, name); err != nil {
		return false, fmt.Errorf("add column %s: %w", name, err)
	}
	r.dynamic = append(r.dynamic, name)
	r.version++
	return true, nil
}

// Extend adds every name not yet present and returns the ones added.
// All names are validated before any column is created.
func (r *Registry) Extend(ctx context.Context, names []string) ([]string, error) {
	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return nil, err
		}
	}
	added := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := r.AddColumnIfAbsent(ctx, name)
		if err != nil {
			return added, err
		}
		if ok {
			added = append(added, name)
		}
	}
	return added, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
