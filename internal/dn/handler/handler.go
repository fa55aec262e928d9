package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/service"
	"dn_tracker_backend/internal/dn/transport"
	"dn_tracker_backend/platform/httpkit"
	"dn_tracker_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidRecordID  = "invalid record id"
	msgPhotoTooLarge    = "photo too large"
	syncFailedCode      = "dn_sync_failed"
	photoField          = "photo"
	multipartMemory     = 32 << 20
)

// Handler handles HTTP requests for DNs.
type Handler struct {
	svc          *service.Service
	val          *validator.Validator
	maxPhotoSize int64
}

// New creates a new DN handler.
func New(svc *service.Service, val *validator.Validator, maxPhotoSize int64) *Handler {
	return &Handler{svc: svc, val: val, maxPhotoSize: maxPhotoSize}
}

// RegisterPublicRoutes registers the driver and dashboard routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/search", h.Search)
	rg.POST("/update", h.Update)
	rg.POST("/batch", h.BatchCreate)
	rg.GET("/numbers/:dnNumber", h.Get)
	rg.GET("/numbers/:dnNumber/records", h.ListRecords)
	rg.GET("/stats/status-delivery", h.StatusDeliveryStats)
	rg.GET("/columns", h.ListColumns)
	rg.GET("/sync/log/latest", h.LatestSyncLog)
}

// RegisterAdminRoutes registers routes that need the admin role.
// syncLimit guards the synchronous sync trigger.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup, syncLimit gin.HandlerFunc) {
	rg.POST("/sync", syncLimit, h.Sync)
	rg.POST("/sync/async", h.EnqueueSync)
	rg.POST("/columns", h.ExtendColumns)
	rg.PUT("/records/:id", h.UpdateRecord)
	rg.DELETE("/records/:id", h.DeleteRecord)
	rg.DELETE("/numbers/:dnNumber", h.Delete)
	rg.POST("/archive/mark", h.MarkArchive)
}

func (h *Handler) Update(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	var req transport.UpdateDNRequest
	if err := c.ShouldBind(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	photo, ok := h.readPhoto(c)
	if !ok {
		return
	}

	result, err := h.svc.UpdateDN(c.Request.Context(), req, photo)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// readPhoto loads the optional photo part. A missing part is not an error.
func (h *Handler) readPhoto(c *gin.Context) (*transport.Photo, bool) {
	fh, err := c.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, true
	}
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, false
	}
	if h.maxPhotoSize > 0 && fh.Size > h.maxPhotoSize {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, msgPhotoTooLarge, nil)
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, false
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &transport.Photo{FileName: fh.Filename, ContentType: contentType, Data: data}, true
}

func (h *Handler) BatchCreate(c *gin.Context) {
	var req transport.BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.BatchCreate(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListDNsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.ListDNs(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Search(c *gin.Context) {
	var req transport.SearchDNsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.SearchDNs(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	result, err := h.svc.GetDN(c.Request.Context(), c.Param("dnNumber"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListRecords(c *gin.Context) {
	var req transport.ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.ListRecords(c.Request.Context(), c.Param("dnNumber"), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) StatusDeliveryStats(c *gin.Context) {
	var req transport.StatusDeliveryStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.StatusDeliveryStats(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListColumns(c *gin.Context) {
	httpkit.OK(c, h.svc.ListColumns())
}

func (h *Handler) LatestSyncLog(c *gin.Context) {
	result, err := h.svc.LatestSyncLog(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Sync(c *gin.Context) {
	result, err := h.svc.TriggerSync(c.Request.Context(), dnsync.TriggerManual)
	var runErr *dnsync.RunError
	if errors.As(err, &runErr) {
		httpkit.JSON(c, http.StatusInternalServerError, transport.SyncFailureResponse{
			OK:    false,
			Error: syncFailedCode,
			ErrorInfo: transport.SyncErrorInfo{
				Message:   runErr.Error(),
				Traceback: runErr.Trace,
			},
		})
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) EnqueueSync(c *gin.Context) {
	result, err := h.svc.EnqueueSync(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, result)
}

func (h *Handler) ExtendColumns(c *gin.Context) {
	var req transport.ExtendColumnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.ExtendColumns(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) UpdateRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var req transport.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.UpdateRecord(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteRecord(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

func (h *Handler) Delete(c *gin.Context) {
	if httpkit.HandleError(c, h.svc.DeleteDN(c.Request.Context(), c.Param("dnNumber"))) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

func (h *Handler) MarkArchive(c *gin.Context) {
	var req transport.ArchiveMarkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	result, err := h.svc.MarkArchive(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRecordID, nil)
		return 0, false
	}
	return id, true
}
