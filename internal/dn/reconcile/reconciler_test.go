package reconcile

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strconv"
	"testing"
	"time"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/logger"
)

type memStore struct {
	dns     map[string]*repository.DN
	history map[string]repository.Record
	nextID  int64
	writes  int
	failGet error
}

func newMemStore() *memStore {
	return &memStore{dns: make(map[string]*repository.DN), history: make(map[string]repository.Record), nextID: 1}
}

func (s *memStore) seed(number string, updateCount int, fields map[string]string) {
	dn := &repository.DN{ID: s.nextID, DNNumber: number, Fields: map[string]*string{}, UpdateCount: updateCount}
	s.nextID++
	for k, v := range fields {
		v := v
		dn.Fields[k] = &v
	}
	s.dns[number] = dn
}

func copyDN(dn *repository.DN) repository.DN {
	out := *dn
	out.Fields = maps.Clone(dn.Fields)
	return out
}

func (s *memStore) GetSnapshotMap(_ context.Context, numbers []string) (map[string]repository.DN, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	out := make(map[string]repository.DN)
	for _, n := range numbers {
		if dn, ok := s.dns[n]; ok {
			out[n] = copyDN(dn)
		}
	}
	return out, nil
}

func (s *memStore) GetLatestHistoryMap(_ context.Context, numbers []string) (map[string]repository.Record, error) {
	out := make(map[string]repository.Record)
	for _, n := range numbers {
		if rec, ok := s.history[n]; ok {
			out[n] = rec
		}
	}
	return out, nil
}

func (s *memStore) apply(dn *repository.DN, fields repository.Payload) {
	for col, value := range fields {
		value := value
		switch col {
		case columns.IdentifierColumn:
		case columns.RowColumn:
			n, _ := strconv.Atoi(value)
			dn.GSRow = &n
		default:
			dn.Fields[col] = &value
		}
	}
}

func (s *memStore) BulkCreate(_ context.Context, payloads []repository.Payload) (int64, error) {
	var created int64
	for _, p := range payloads {
		number := p[columns.IdentifierColumn]
		if _, exists := s.dns[number]; exists {
			continue
		}
		dn := &repository.DN{ID: s.nextID, DNNumber: number, Fields: map[string]*string{}}
		s.nextID++
		s.apply(dn, p)
		s.dns[number] = dn
		created++
		s.writes++
	}
	return created, nil
}

func (s *memStore) BulkUpdate(_ context.Context, payloads []repository.UpdatePayload) (int64, error) {
	for _, p := range payloads {
		s.apply(s.dns[p.DNNumber], p.Fields)
		s.writes++
	}
	return int64(len(payloads)), nil
}

func (s *memStore) MarkMissingAsDeleted(_ context.Context, present []string) (int64, error) {
	var n int64
	for number, dn := range s.dns {
		if !slices.Contains(present, number) && !dn.IsDeleted {
			dn.IsDeleted = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) ResetPresentAsActive(_ context.Context, present []string) (int64, error) {
	var n int64
	for _, number := range present {
		if dn, ok := s.dns[number]; ok && dn.IsDeleted {
			dn.IsDeleted = false
			n++
		}
	}
	return n, nil
}

func (s *memStore) NormalizeStoredFields(_ context.Context, fn repository.NormalizeFunc) (int, error) {
	changed := 0
	for _, dn := range s.dns {
		if fields := fn(copyDN(dn)); len(fields) > 0 {
			s.apply(dn, fields)
			changed++
		}
	}
	return changed, nil
}

func (s *memStore) InTx(_ context.Context, fn func(repository.SyncStore) error) error {
	return fn(s)
}

func (s *memStore) value(t *testing.T, number, col string) string {
	t.Helper()
	dn, ok := s.dns[number]
	if !ok {
		t.Fatalf("dn %s not stored", number)
	}
	if v := dn.Fields[col]; v != nil {
		return *v
	}
	return ""
}

func row(number int, cells map[string]string) sheets.Row {
	return sheets.Row{Sheet: "Plan MOS A", Number: number, Values: cells}
}

func newReconciler(store *memStore) *Reconciler {
	r := New(store, columns.NewRegistry(nil), logger.NewDiscard())
	r.now = func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestRunCreatesThenIsIdempotent(t *testing.T) {
	store := newMemStore()
	rec := newReconciler(store)
	rows := []sheets.Row{row(4, map[string]string{
		"dn_number":             "dn1",
		"status_delivery":       "on the way",
		"driver_contact_number": "0811",
	})}

	first, err := rec.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Created != 1 || first.Updated != 0 {
		t.Fatalf("unexpected first result %+v", first)
	}
	if got := store.value(t, "DN1", "status_delivery"); got != "On the way" {
		t.Fatalf("expected canonical status, got %q", got)
	}
	if store.dns["DN1"].IsDeleted {
		t.Fatal("expected DN1 active")
	}
	if *store.dns["DN1"].GSRow != 4 || store.value(t, "DN1", "gs_sheet") != "Plan MOS A" {
		t.Fatal("expected sheet origin pointer stored")
	}

	writes := store.writes
	second, err := rec.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Created != 0 || second.Updated != 0 || second.Unchanged != 1 {
		t.Fatalf("expected idempotent second run, got %+v", second)
	}
	if store.writes != writes {
		t.Fatal("expected no writes on second run")
	}
	if !slices.Equal(second.Numbers, []string{"DN1"}) {
		t.Fatalf("unexpected numbers %v", second.Numbers)
	}
}

func TestContactNumberProtectedAfterAPIUpdate(t *testing.T) {
	store := newMemStore()
	store.seed("DN1", 1, map[string]string{"driver_contact_number": "081111111111", "lsp": "A"})
	store.seed("DN2", 0, map[string]string{"driver_contact_number": "081111111111", "lsp": "A"})

	_, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN1", "driver_contact_number": "089999", "lsp": "B"}),
		row(5, map[string]string{"dn_number": "DN2", "driver_contact_number": "089999", "lsp": "B"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.value(t, "DN1", "driver_contact_number"); got != "081111111111" {
		t.Fatalf("expected protected contact kept, got %q", got)
	}
	if got := store.value(t, "DN1", "lsp"); got != "B" {
		t.Fatalf("expected unprotected field updated, got %q", got)
	}
	if got := store.value(t, "DN2", "driver_contact_number"); got != "089999" {
		t.Fatalf("expected contact overwritten without history, got %q", got)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	store := newMemStore()
	store.seed("DN-5", 0, map[string]string{"lsp": "A"})
	rec := newReconciler(store)

	res, err := rec.Run(context.Background(), []sheets.Row{row(4, map[string]string{"dn_number": "DN-1", "lsp": "A"})})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !store.dns["DN-5"].IsDeleted || res.Deleted != 1 {
		t.Fatalf("expected DN-5 soft-deleted, got %+v", res)
	}

	res, err = rec.Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN-1", "lsp": "A"}),
		row(5, map[string]string{"dn_number": "dn-5", "lsp": "A"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.dns["DN-5"].IsDeleted || res.Restored != 1 {
		t.Fatalf("expected DN-5 restored, got %+v", res)
	}
}

func TestHistoryStatusWinsOverSheet(t *testing.T) {
	store := newMemStore()
	store.seed("DN1", 1, map[string]string{"status_delivery": "On the way"})
	remark := "received by site PIC"
	store.history["DN1"] = repository.Record{DNNumber: "DN1", Status: "POD", Remark: &remark}

	_, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN1", "status_delivery": "On The Way", "lsp": "A"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.value(t, "DN1", "status_delivery"); got != "POD" {
		t.Fatalf("expected history status POD, got %q", got)
	}
	if got := store.value(t, "DN1", "remark"); got != remark {
		t.Fatalf("expected history remark, got %q", got)
	}
	if got := store.value(t, "DN1", "lsp"); got != "A" {
		t.Fatalf("expected sheet lsp kept, got %q", got)
	}
}

func TestDuplicatesLastOccurrenceWins(t *testing.T) {
	store := newMemStore()
	res, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN1", "lsp": "first"}),
		row(9, map[string]string{"dn_number": " dn1 ", "lsp": "second"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Duplicates != 1 || res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := store.value(t, "DN1", "lsp"); got != "second" {
		t.Fatalf("expected last occurrence, got %q", got)
	}
	if *store.dns["DN1"].GSRow != 9 {
		t.Fatal("expected row pointer from last occurrence")
	}
}

func TestSkipsRowsWithoutNumberOrPayload(t *testing.T) {
	store := newMemStore()
	res, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "  ", "lsp": "A"}),
		row(5, map[string]string{"dn_number": "DN2", "lsp": "  "}),
		row(6, map[string]string{"dn_number": "DN3", "lsp": "A"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.SkippedMissingNumber != 1 || res.SkippedEmptyPayload != 1 || res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Ignored() != 0 {
		t.Fatalf("expected skipped rows outside the ignored count, got %d", res.Ignored())
	}
	if _, ok := store.dns["DN2"]; ok {
		t.Fatal("expected empty-payload row skipped")
	}
}

func TestBlankSheetValuesNeverClearStoredValues(t *testing.T) {
	store := newMemStore()
	store.seed("DN1", 0, map[string]string{"lsp": "A", "region": "JABO", "status_delivery": "POD"})
	res, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN1", "lsp": " A ", "region": ""}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.value(t, "DN1", "region"); got != "JABO" {
		t.Fatalf("expected region kept, got %q", got)
	}
	if res.Updated != 1 {
		t.Fatalf("expected only the origin pointer to change, got %+v", res)
	}
}

func TestEmptySnapshotSkipsSweep(t *testing.T) {
	store := newMemStore()
	store.seed("DN1", 0, map[string]string{"lsp": "A"})
	res, err := newReconciler(store).Run(context.Background(), []sheets.Row{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.dns["DN1"].IsDeleted {
		t.Fatal("expected no soft delete for an empty snapshot")
	}
	if res.Numbers == nil || len(res.Numbers) != 0 {
		t.Fatalf("expected empty numbers, got %v", res.Numbers)
	}
}

func TestDatesAndBlankStatusesAreNormalized(t *testing.T) {
	store := newMemStore()
	store.seed("DN9", 0, map[string]string{"plan_mos_date": "2024-03-05"})
	res, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN1", "plan_mos_date": "5 Mar 2024"}),
		row(5, map[string]string{"dn_number": "DN9", "lsp": "A"}),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.value(t, "DN1", "plan_mos_date"); got != "05 Mar 24" {
		t.Fatalf("expected reformatted sheet date, got %q", got)
	}
	if got := store.value(t, "DN9", "plan_mos_date"); got != "05 Mar 24" {
		t.Fatalf("expected stored date normalized, got %q", got)
	}
	if got := store.value(t, "DN1", "status_delivery"); got != "No Status" {
		t.Fatalf("expected default status, got %q", got)
	}
	if res.Normalized != 2 {
		t.Fatalf("expected two normalized rows, got %d", res.Normalized)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := newMemStore()
	store.failGet = errors.New("db down")
	if _, err := newReconciler(store).Run(context.Background(), []sheets.Row{
		row(4, map[string]string{"dn_number": "DN1", "lsp": "A"}),
	}); !errors.Is(err, store.failGet) {
		t.Fatalf("expected store error, got %v", err)
	}
}
