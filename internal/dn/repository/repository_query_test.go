package repository

import (
	"strings"
	"testing"
)

func requireFragments(t *testing.T, query string, fragments ...string) {
	t.Helper()
	lowered := strings.ToLower(query)
	for _, fragment := range fragments {
		if !strings.Contains(lowered, fragment) {
			t.Fatalf("expected query fragment %q in:\n%s", fragment, query)
		}
	}
}

func TestLatestHistoryQueryPicksNewestPerNumber(t *testing.T) {
	requireFragments(t, latestHistoryQuery,
		"distinct on (dn_number)",
		"where dn_number = any($1)",
		"order by dn_number, created_at desc, id desc",
	)
}

func TestSweepQueriesAreSetBased(t *testing.T) {
	requireFragments(t, markMissingAsDeletedQuery, "set is_deleted = true", "not (dn_number = any($1))")
	requireFragments(t, resetPresentAsActiveQuery, "set is_deleted = false", "dn_number = any($1)")
}

func TestBulkCreateIgnoresConflicts(t *testing.T) {
	query := bulkCreateQuery(payloadColumns([]Payload{
		{"dn_number": "DN1", "lsp": "A"},
		{"dn_number": "DN2", "gs_row": "4"},
	}))
	requireFragments(t, query,
		`insert into dn ("dn_number", "gs_row", "lsp")`,
		"jsonb_populate_recordset(null::dn, $1::jsonb)",
		"on conflict (dn_number) do nothing",
	)
}

func TestBulkUpdateOnlyTouchesPresentKeys(t *testing.T) {
	query := bulkUpdateQuery([]string{"dn_number", "gs_row", "status_delivery"})
	requireFragments(t, query,
		`"status_delivery" = case when p.payload ? 'status_delivery' then p.payload->>'status_delivery' else d."status_delivery" end`,
		`"gs_row" = case when p.payload ? 'gs_row' then (p.payload->>'gs_row')::integer else d."gs_row" end`,
		"updated_at = now()",
		"jsonb_to_recordset($1::jsonb) as p(id bigint, payload jsonb)",
		"where d.id = p.id",
	)
	if strings.Contains(query, `"dn_number" =`) {
		t.Fatal("bulk update must never reassign dn_number")
	}
}

func TestNormalizeScanSkipsDeletedDNs(t *testing.T) {
	requireFragments(t, normalizeScanQuery([]string{"lsp"}),
		"from dn d where d.is_deleted = false",
		"order by d.id",
	)
}

func TestAddColumnQueryQuotesIdentifier(t *testing.T) {
	if got := addColumnQuery("vendor_ref"); got != `ALTER TABLE dn ADD COLUMN IF NOT EXISTS "vendor_ref" TEXT` {
		t.Fatalf("unexpected query %q", got)
	}
}

func TestListWhereBuildsPlaceholdersInOrder(t *testing.T) {
	where, args := listWhere(ListFilter{
		LSPs:  []string{"LSP-A"},
		Query: "jkt",
	})
	requireFragments(t, where, "d.is_deleted = false", "d.lsp = any($1)", "d.dn_number ilike $2")
	if len(args) != 2 || args[1] != "%jkt%" {
		t.Fatalf("unexpected args %v", args)
	}

	where, args = listWhere(ListFilter{IncludeDeleted: true})
	if strings.Contains(strings.ToLower(where), "is_deleted") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %q %v", where, args)
	}
}

func TestStatusCountsQueryBucketsBlank(t *testing.T) {
	requireFragments(t, statusDeliveryCountsQuery,
		"coalesce(nullif(trim(status_delivery), ''), 'no status')",
		"where is_deleted = false",
	)
}

func TestDNSelectListQuotesColumns(t *testing.T) {
	got := dnSelectList([]string{"lsp", "extra_note"})
	requireFragments(t, got, `d."lsp", d."extra_note"`, "d.gs_row, d.is_deleted, d.update_count")
}
