package repository

import "time"

// DN is the current state of one delivery order.
type DN struct {
	ID          int64
	DNNumber    string
	Fields      map[string]*string
	GSRow       *int
	IsDeleted   bool
	UpdateCount int
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Field returns the value of a text column, or nil.
func (d DN) Field(name string) *string {
	return d.Fields[name]
}

// FieldString returns the value of a text column, or "".
func (d DN) FieldString(name string) string {
	if v := d.Fields[name]; v != nil {
		return *v
	}
	return ""
}

// Record is one immutable history entry for a DN.
type Record struct {
	ID             int64
	DNNumber       string
	DUID           *string
	Status         string
	StatusDelivery *string
	StatusSite     *string
	Remark         *string
	PhotoURL       *string
	Lng            *string
	Lat            *string
	UpdatedBy      *string
	PhoneNumber    *string
	CreatedAt      time.Time
}

// NewRecord is the input for appending a history entry.
type NewRecord struct {
	DNNumber       string
	DUID           *string
	Status         string
	StatusDelivery *string
	StatusSite     *string
	Remark         *string
	PhotoURL       *string
	Lng            *string
	Lat            *string
	UpdatedBy      *string
	PhoneNumber    *string
}

// RecordPatch edits a history entry. Nil fields are left unchanged.
type RecordPatch struct {
	Status   *string
	Remark   *string
	PhotoURL *string
}

// SyncLog is the audit row written after every sync run.
type SyncLog struct {
	ID             int64
	Status         string
	SyncedCount    int
	DNNumbers      []string
	Message        string
	ErrorMessage   *string
	ErrorTraceback *string
	CreatedAt      time.Time
}

const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// Payload is a sparse set of column values keyed by column name. gs_row is
// carried as its decimal text.
type Payload map[string]string

// UpdatePayload carries only the changed columns of an existing DN.
type UpdatePayload struct {
	ID       int64
	DNNumber string
	Fields   Payload
}

// ListFilter narrows ListDNs. Empty slices match everything.
type ListFilter struct {
	Numbers        []string
	DUIDs          []string
	StatusDelivery []string
	Statuses       []string
	LSPs           []string
	Regions        []string
	Areas          []string
	PlanMOSDates   []string
	Query          string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ListResult is one page of DNs.
type ListResult struct {
	Items []DN
	Total int
}

// StatsFilter narrows StatusDeliveryCounts.
type StatsFilter struct {
	LSP         string
	PlanMOSDate string
	Region      string
}

// StatusCount is the number of active DNs with a status_delivery value.
type StatusCount struct {
	StatusDelivery string
	Count          int
}

// NormalizeFunc returns the columns of dn that need rewriting, or nil.
type NormalizeFunc func(dn DN) Payload
