package service

import (
	"context"
	"slices"
	"strings"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/transport"
	"dn_tracker_backend/platform/apperr"
)

func (s *Service) GetDN(ctx context.Context, rawNumber string) (transport.DNResponse, error) {
	number := normalize.Identifier(rawNumber)
	if number == "" {
		return transport.DNResponse{}, apperr.Validation(msgInvalidNumber)
	}
	dn, err := s.store.GetDN(ctx, number)
	if err != nil {
		return transport.DNResponse{}, err
	}
	return s.mapDN(dn), nil
}

func (s *Service) ListDNs(ctx context.Context, req transport.ListDNsRequest) (transport.ListDNsResponse, error) {
	var numbers []string
	for _, v := range normalize.QueryValues(req.DNNumber...) {
		numbers = append(numbers, normalize.Identifier(v))
	}
	var duIDs []string
	for _, v := range normalize.QueryValues(req.DUID...) {
		duIDs = append(duIDs, normalize.Identifier(v))
	}
	var statusDelivery []string
	for _, v := range normalize.QueryValues(req.StatusDelivery...) {
		statusDelivery = append(statusDelivery, normalize.StatusLabelOrDefault(v))
	}

	page, pageSize := pagination(req.Page, req.PageSize)
	return s.list(ctx, repository.ListFilter{
		Numbers:        numbers,
		DUIDs:          duIDs,
		StatusDelivery: statusDelivery,
		Statuses:       normalize.QueryValues(req.Status...),
		LSPs:           normalize.QueryValues(req.LSP...),
		Regions:        normalize.QueryValues(req.Region...),
		Areas:          normalize.QueryValues(req.Area...),
		PlanMOSDates:   normalize.QueryValues(req.PlanMOSDate...),
		IncludeDeleted: req.IncludeDeleted,
	}, page, pageSize)
}

// SearchDNs matches q against the number, DU ID, LSP, region and area.
func (s *Service) SearchDNs(ctx context.Context, req transport.SearchDNsRequest) (transport.ListDNsResponse, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return transport.ListDNsResponse{}, apperr.Validation("search query is required")
	}
	page, pageSize := pagination(req.Page, req.PageSize)
	return s.list(ctx, repository.ListFilter{Query: q}, page, pageSize)
}

func (s *Service) list(ctx context.Context, filter repository.ListFilter, page, pageSize int) (transport.ListDNsResponse, error) {
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	result, err := s.store.ListDNs(ctx, filter)
	if err != nil {
		return transport.ListDNsResponse{}, err
	}
	items := make([]transport.DNResponse, 0, len(result.Items))
	for _, dn := range result.Items {
		items = append(items, s.mapDN(dn))
	}
	return transport.ListDNsResponse{
		Items:      items,
		Total:      result.Total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (result.Total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) ListRecords(ctx context.Context, rawNumber string, limit int) (transport.ListRecordsResponse, error) {
	number := normalize.Identifier(rawNumber)
	if number == "" {
		return transport.ListRecordsResponse{}, apperr.Validation(msgInvalidNumber)
	}
	if limit <= 0 {
		limit = defaultRecordLimit
	}
	records, err := s.store.ListRecords(ctx, number, limit)
	if err != nil {
		return transport.ListRecordsResponse{}, err
	}
	items := make([]transport.RecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, mapRecord(rec))
	}
	return transport.ListRecordsResponse{DNNumber: number, Items: items}, nil
}

// StatusDeliveryStats counts active DNs per canonical status_delivery. The
// standard labels come first in report order, always present; any other
// label follows alphabetically.
func (s *Service) StatusDeliveryStats(ctx context.Context, req transport.StatusDeliveryStatsRequest) (transport.StatusDeliveryStatsResponse, error) {
	counts, err := s.store.StatusDeliveryCounts(ctx, repository.StatsFilter{
		LSP:         req.LSP,
		PlanMOSDate: req.PlanMOSDate,
		Region:      req.Region,
	})
	if err != nil {
		return transport.StatusDeliveryStatsResponse{}, err
	}

	byLabel := make(map[string]int, len(counts))
	for _, c := range counts {
		byLabel[normalize.StatusLabelOrDefault(c.StatusDelivery)] += c.Count
	}

	resp := transport.StatusDeliveryStatsResponse{Items: make([]transport.StatusCountResponse, 0, len(byLabel))}
	for _, label := range normalize.StandardStatusLabels {
		resp.Items = append(resp.Items, transport.StatusCountResponse{StatusDelivery: label, Count: byLabel[label]})
		resp.Total += byLabel[label]
		delete(byLabel, label)
	}
	extras := make([]string, 0, len(byLabel))
	for label := range byLabel {
		extras = append(extras, label)
	}
	slices.Sort(extras)
	for _, label := range extras {
		resp.Items = append(resp.Items, transport.StatusCountResponse{StatusDelivery: label, Count: byLabel[label]})
		resp.Total += byLabel[label]
	}
	return resp, nil
}

func pagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func (s *Service) mapDN(dn repository.DN) transport.DNResponse {
	fields := dn.Fields
	if fields == nil {
		fields = map[string]*string{}
	}
	resp := transport.DNResponse{
		ID:          dn.ID,
		DNNumber:    dn.DNNumber,
		Fields:      fields,
		GSRow:       dn.GSRow,
		IsDeleted:   dn.IsDeleted,
		UpdateCount: dn.UpdateCount,
		CreatedAt:   dn.CreatedAt,
		UpdatedAt:   dn.UpdatedAt,
	}
	if s.linker != nil && dn.GSRow != nil {
		resp.SheetURL = s.linker.CellURL(dn.FieldString(columns.SheetColumn), *dn.GSRow)
	}
	return resp
}

func mapRecord(rec repository.Record) transport.RecordResponse {
	return transport.RecordResponse{
		ID:             rec.ID,
		DNNumber:       rec.DNNumber,
		DUID:           rec.DUID,
		Status:         rec.Status,
		StatusDelivery: rec.StatusDelivery,
		StatusSite:     rec.StatusSite,
		Remark:         rec.Remark,
		PhotoURL:       rec.PhotoURL,
		Lng:            rec.Lng,
		Lat:            rec.Lat,
		UpdatedBy:      rec.UpdatedBy,
		PhoneNumber:    rec.PhoneNumber,
		CreatedAt:      rec.CreatedAt,
	}
}
