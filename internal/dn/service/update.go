package service

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"dn_tracker_backend/internal/adapters/storage"
	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/transport"
	"dn_tracker_backend/internal/dn/writeback"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/phone"
	"dn_tracker_backend/platform/sanitize"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	msgInvalidNumber = "invalid dn number"
	msgInvalidStatus = "invalid status"
)

// UpdateDN records a driver status update, stores the DN's new state and
// hands the status to the sheet write-back queue when the DN
// came from the sheet.
func (s *Service) UpdateDN(ctx context.Context, req transport.UpdateDNRequest, photo *transport.Photo) (transport.UpdateDNResponse, error) {
	number := normalize.Identifier(req.DNNumber)
	if number == "" {
		return transport.UpdateDNResponse{}, apperr.Validation(msgInvalidNumber)
	}
	status := strings.TrimSpace(req.Status)
	if !normalize.IsValidStatus(status) {
		return transport.UpdateDNResponse{}, apperr.Validation(msgInvalidStatus)
	}

	var duID *string
	if v := normalize.OptionalString(req.DUID); v != nil {
		id := normalize.Identifier(*v)
		duID = &id
	}
	lng := normalize.OptionalString(req.Lng)
	lat := normalize.OptionalString(req.Lat)

	var photoURL *string
	photoKey := ""
	if photo != nil && len(photo.Data) > 0 {
		key, url, err := s.uploadPhoto(ctx, number, photo)
		if err != nil {
			return transport.UpdateDNResponse{}, err
		}
		photoKey = key
		photoURL = &url
		if lng == nil && lat == nil {
			lat, lng = exifCoordinates(photo)
		}
	}

	remark := sanitize.Remark(req.Remark, maxRemarkRunes)
	phoneNumber := phone.NormalizeOptional(req.PhoneNumber)
	updatedBy := normalize.OptionalString(req.UpdatedBy)
	statusSite := normalize.OptionalString(req.StatusSite)
	explicit := ""
	if req.StatusDelivery != nil {
		explicit = *req.StatusDelivery
	}
	delivery := normalize.DeliveryStatusFor(status, explicit)

	dn, err := s.store.EnsureDN(ctx, number, map[string]*string{
		"status":                     &status,
		columns.StatusDeliveryColumn: &delivery,
		"status_site":                statusSite,
		"remark":                     remark,
		"photo_url":                  photoURL,
		"lng":                        lng,
		"lat":                        lat,
		"last_updated_by":            updatedBy,
		"du_id":                      duID,
	})
	if err != nil {
		s.discardPhoto(ctx, photoKey)
		return transport.UpdateDNResponse{}, err
	}

	rec, err := s.store.AddRecord(ctx, repository.NewRecord{
		DNNumber:       number,
		DUID:           duID,
		Status:         status,
		StatusDelivery: &delivery,
		StatusSite:     statusSite,
		Remark:         remark,
		PhotoURL:       photoURL,
		Lng:            lng,
		Lat:            lat,
		UpdatedBy:      updatedBy,
		PhoneNumber:    phoneNumber,
	})
	if err != nil {
		s.discardPhoto(ctx, photoKey)
		return transport.UpdateDNResponse{}, err
	}

	resp := transport.UpdateDNResponse{OK: true, ID: rec.ID, DNNumber: number, PhotoURL: photoURL}
	sheet := dn.FieldString(columns.SheetColumn)
	if sheet != "" && dn.GSRow != nil && *dn.GSRow > 0 && s.writeBack != nil {
		who := ""
		if updatedBy != nil {
			who = *updatedBy
		}
		resp.WriteBack = s.submitWriteBack(ctx, writeback.Request{
			Sheet:          sheet,
			Row:            *dn.GSRow,
			DNNumber:       number,
			StatusDelivery: &delivery,
			StatusSite:     statusSite,
			Remark:         remark,
			UpdatedBy:      who,
		})
	}
	return resp, nil
}

// submitWriteBack never fails the update: the DB change is already stored.
func (s *Service) submitWriteBack(ctx context.Context, req writeback.Request) *sheets.StatusOutcome {
	h, err := s.writeBack.Submit(ctx, req)
	if err != nil {
		s.log.Warn("sheet write-back not submitted", "dnNumber", req.DNNumber, "error", err)
		return &sheets.StatusOutcome{Status: sheets.OutcomeError, Sheet: req.Sheet, Row: req.Row, Err: err.Error()}
	}
	select {
	case <-h.Done():
		out, _ := h.Wait(ctx)
		return &out
	default:
		return &sheets.StatusOutcome{Status: sheets.OutcomeQueued, Sheet: req.Sheet, Row: req.Row, Queued: true}
	}
}

func (s *Service) uploadPhoto(ctx context.Context, number string, photo *transport.Photo) (string, string, error) {
	if s.storage == nil {
		return "", "", apperr.Unavailable("photo storage is not configured", nil)
	}
	if err := s.storage.ValidateContentType(photo.ContentType); err != nil {
		return "", "", apperr.Validation(err.Error())
	}
	if err := s.storage.ValidateFileSize(int64(len(photo.Data))); err != nil {
		return "", "", apperr.Validation(err.Error())
	}
	key, err := s.storage.UploadFile(ctx, s.photoBucket, photoFolder+"/"+number, photo.FileName,
		photo.ContentType, bytes.NewReader(photo.Data), int64(len(photo.Data)))
	if err != nil {
		return "", "", apperr.Unavailable("photo upload failed", err)
	}
	return key, s.storage.ObjectURL(s.photoBucket, key), nil
}

// discardPhoto removes a photo uploaded for an update that was not stored.
func (s *Service) discardPhoto(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.DeleteObject(context.WithoutCancel(ctx), s.photoBucket, key); err != nil {
		s.log.Warn("orphaned dn photo not removed", "key", key, "error", err)
	}
}

// exifCoordinates reads the GPS tag of a JPEG photo, if any.
func exifCoordinates(photo *transport.Photo) (lat, lng *string) {
	if !storage.IsJPEG(photo.ContentType) {
		return nil, nil
	}
	x, err := exif.Decode(bytes.NewReader(photo.Data))
	if err != nil {
		return nil, nil
	}
	la, lo, err := x.LatLong()
	if err != nil {
		return nil, nil
	}
	latText := strconv.FormatFloat(la, 'f', 6, 64)
	lngText := strconv.FormatFloat(lo, 'f', 6, 64)
	return &latText, &lngText
}

// BatchCreate registers new DN numbers with an initial NO STATUS entry.
// Invalid, repeated and already stored numbers are reported, not created.
func (s *Service) BatchCreate(ctx context.Context, req transport.BatchCreateRequest) (transport.BatchCreateResponse, error) {
	resp := transport.BatchCreateResponse{Created: []string{}, Failures: []transport.BatchFailure{}}
	seen := make(map[string]struct{}, len(req.DNNumbers))
	candidates := make([]string, 0, len(req.DNNumbers))
	for _, raw := range req.DNNumbers {
		number := normalize.Identifier(raw)
		if number == "" {
			key := raw
			if key == "" {
				key = "<empty>"
			}
			resp.Failures = append(resp.Failures, transport.BatchFailure{DNNumber: key, Reason: transport.FailureInvalid})
			continue
		}
		if _, dup := seen[number]; dup {
			resp.Failures = append(resp.Failures, transport.BatchFailure{DNNumber: number, Reason: transport.FailureDuplicate})
			continue
		}
		seen[number] = struct{}{}
		candidates = append(candidates, number)
	}

	existing, err := s.store.ExistingNumbers(ctx, candidates)
	if err != nil {
		return transport.BatchCreateResponse{}, err
	}
	stored := make(map[string]struct{}, len(existing))
	for _, number := range existing {
		stored[number] = struct{}{}
	}

	status := "NO STATUS"
	for _, number := range candidates {
		if _, ok := stored[number]; ok {
			resp.Failures = append(resp.Failures, transport.BatchFailure{DNNumber: number, Reason: transport.FailureExists})
			continue
		}
		if _, err := s.store.EnsureDN(ctx, number, map[string]*string{"status": &status}); err != nil {
			return transport.BatchCreateResponse{}, err
		}
		if _, err := s.store.AddRecord(ctx, repository.NewRecord{DNNumber: number, Status: status}); err != nil {
			return transport.BatchCreateResponse{}, err
		}
		resp.Created = append(resp.Created, number)
	}

	resp.OK = len(resp.Created) > 0
	resp.SuccessCount = len(resp.Created)
	resp.FailureCount = len(resp.Failures)
	return resp, nil
}
