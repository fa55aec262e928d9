package transport

import (
	"time"

	"dn_tracker_backend/internal/sheets"
)

// UpdateDNRequest is the multipart form of a driver status update.
type UpdateDNRequest struct {
	DNNumber       string  `form:"dnNumber" validate:"required,max=64"`
	DUID           *string `form:"duId" validate:"omitempty,max=64"`
	Status         string  `form:"status" validate:"required,dn_status"`
	StatusDelivery *string `form:"statusDelivery" validate:"omitempty,max=64"`
	StatusSite     *string `form:"statusSite" validate:"omitempty,max=64"`
	Remark         *string `form:"remark"`
	Lng            *string `form:"lng" validate:"omitempty,longitude"`
	Lat            *string `form:"lat" validate:"omitempty,latitude"`
	PhoneNumber    *string `form:"phoneNumber" validate:"omitempty,max=32"`
	UpdatedBy      *string `form:"updatedBy" validate:"omitempty,max=120"`
}

// Photo is an uploaded proof photo held in memory.
type Photo struct {
	FileName    string
	ContentType string
	Data        []byte
}

type UpdateDNResponse struct {
	OK        bool                  `json:"ok"`
	ID        int64                 `json:"id"`
	DNNumber  string                `json:"dnNumber"`
	PhotoURL  *string               `json:"photoUrl,omitempty"`
	WriteBack *sheets.StatusOutcome `json:"writeBack,omitempty"`
}

type BatchCreateRequest struct {
	DNNumbers []string `json:"dnNumbers" validate:"required,min=1,max=500"`
}

// BatchFailure reasons.
const (
	FailureInvalid     = "invalid_dn_number"
	FailureDuplicate   = "duplicate_in_request"
	FailureExists     = "already_exists"
)

type BatchFailure struct {
	DNNumber string `json:"dnNumber"`
	Reason   string `json:"reason"`
}

type BatchCreateResponse struct {
	OK           bool           `json:"ok"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Created      []string       `json:"created"`
	Failures     []BatchFailure `json:"failures"`
}

type ListDNsRequest struct {
	DNNumber       []string `form:"dnNumber"`
	DUID           []string `form:"duId"`
	StatusDelivery []string `form:"statusDelivery"`
	Status         []string `form:"status"`
	LSP            []string `form:"lsp"`
	Region         []string `form:"region"`
	Area           []string `form:"area"`
	PlanMOSDate    []string `form:"planMosDate"`
	IncludeDeleted bool     `form:"includeDeleted"`
	Page           int      `form:"page" validate:"omitempty,min=1"`
	PageSize       int      `form:"pageSize" validate:"omitempty,min=1,max=500"`
}

type SearchDNsRequest struct {
	Query    string `form:"q" validate:"required,max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=500"`
}

type DNResponse struct {
	ID          int64              `json:"id"`
	DNNumber    string             `json:"dnNumber"`
	Fields      map[string]*string `json:"fields"`
	GSRow       *int               `json:"gsRow,omitempty"`
	SheetURL    string             `json:"sheetUrl,omitempty"`
	IsDeleted   bool               `json:"isDeleted"`
	UpdateCount int                `json:"updateCount"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   *time.Time         `json:"updatedAt,omitempty"`
}

type ListDNsResponse struct {
	Items      []DNResponse `json:"items"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

type ListRecordsRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

type RecordResponse struct {
	ID             int64     `json:"id"`
	DNNumber       string    `json:"dnNumber"`
	DUID           *string   `json:"duId,omitempty"`
	Status         string    `json:"status"`
	StatusDelivery *string   `json:"statusDelivery,omitempty"`
	StatusSite     *string   `json:"statusSite,omitempty"`
	Remark         *string   `json:"remark,omitempty"`
	PhotoURL       *string   `json:"photoUrl,omitempty"`
	Lng            *string   `json:"lng,omitempty"`
	Lat            *string   `json:"lat,omitempty"`
	UpdatedBy      *string   `json:"updatedBy,omitempty"`
	PhoneNumber    *string   `json:"phoneNumber,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ListRecordsResponse struct {
	DNNumber string           `json:"dnNumber"`
	Items    []RecordResponse `json:"items"`
}

// UpdateRecordRequest edits a history entry. Absent fields are kept.
type UpdateRecordRequest struct {
	Status   *string `json:"status,omitempty" validate:"omitempty,dn_status"`
	Remark   *string `json:"remark,omitempty"`
	PhotoURL *string `json:"photoUrl,omitempty" validate:"omitempty,url"`
}

type StatusDeliveryStatsRequest struct {
	LSP         string `form:"lsp"`
	PlanMOSDate string `form:"planMosDate"`
	Region      string `form:"region"`
}

type StatusCountResponse struct {
	StatusDelivery string `json:"statusDelivery"`
	Count          int    `json:"count"`
}

type StatusDeliveryStatsResponse struct {
	Items []StatusCountResponse `json:"items"`
	Total int                   `json:"total"`
}

type ColumnsResponse struct {
	Columns []string `json:"columns"`
	Dynamic []string `json:"dynamic"`
	Version int64    `json:"version"`
}

type ExtendColumnsRequest struct {
	Columns []string `json:"columns" validate:"required,min=1,max=50,dive,required,max=63"`
}

type ExtendColumnsResponse struct {
	Added   []string `json:"added"`
	Columns []string `json:"columns"`
	Version int64    `json:"version"`
}

type SyncResponse struct {
	OK           bool     `json:"ok"`
	SyncedCount  int      `json:"syncedCount"`
	CreatedCount int      `json:"createdCount"`
	UpdatedCount int      `json:"updatedCount"`
	IgnoredCount int      `json:"ignoredCount"`
	DNNumbers    []string `json:"dnNumbers"`
}

type SyncErrorInfo struct {
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

type SyncFailureResponse struct {
	OK        bool          `json:"ok"`
	Error     string        `json:"error"`
	ErrorInfo SyncErrorInfo `json:"errorInfo"`
}

type SyncQueuedResponse struct {
	OK     bool `json:"ok"`
	Queued bool `json:"queued"`
}

type SyncLogResponse struct {
	ID             int64     `json:"id"`
	Status         string    `json:"status"`
	SyncedCount    int       `json:"syncedCount"`
	DNNumbers      []string  `json:"dnNumbers"`
	Message        string    `json:"message"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	ErrorTraceback *string   `json:"errorTraceback,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type LatestSyncLogResponse struct {
	OK   bool             `json:"ok"`
	Data *SyncLogResponse `json:"data"`
}

type ArchiveMarkRequest struct {
	ThresholdDays *int `json:"thresholdDays,omitempty" validate:"omitempty,min=0,max=365"`
}
