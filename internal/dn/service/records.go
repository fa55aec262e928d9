package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/transport"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/sanitize"
)

// UpdateRecord edits one history entry and mirrors it onto the DN.
func (s *Service) UpdateRecord(ctx context.Context, id int64, req transport.UpdateRecordRequest) (transport.RecordResponse, error) {
	var patch repository.RecordPatch
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !normalize.IsValidStatus(status) {
			return transport.RecordResponse{}, apperr.Validation(msgInvalidStatus)
		}
		patch.Status = &status
	}
	if req.Remark != nil {
		if utf8.RuneCountInString(strings.TrimSpace(*req.Remark)) > maxRemarkRunes {
			return transport.RecordResponse{}, apperr.Validation("remark too long (max 1000 chars)")
		}
		patch.Remark = sanitize.Remark(req.Remark, maxRemarkRunes)
	}
	patch.PhotoURL = normalize.OptionalString(req.PhotoURL)
	if patch.Status == nil && patch.Remark == nil && patch.PhotoURL == nil {
		return transport.RecordResponse{}, apperr.Validation("nothing to update")
	}

	rec, err := s.store.UpdateRecord(ctx, id, patch)
	if err != nil {
		return transport.RecordResponse{}, err
	}
	status := rec.Status
	if _, err := s.store.EnsureDN(ctx, rec.DNNumber, map[string]*string{
		"status":    &status,
		"remark":    rec.Remark,
		"photo_url": rec.PhotoURL,
	}); err != nil {
		return transport.RecordResponse{}, err
	}
	return mapRecord(rec), nil
}

func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	return s.store.DeleteRecord(ctx, id)
}

// DeleteDN removes the DN and its history.
func (s *Service) DeleteDN(ctx context.Context, rawNumber string) error {
	number := normalize.Identifier(rawNumber)
	if number == "" {
		return apperr.Validation(msgInvalidNumber)
	}
	return s.store.DeleteDN(ctx, number)
}
