package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/clause"
)

func TestLinkStatementBuildsRowList(t *testing.T) {
	stmt := linkStatement(2)
	if !strings.Contains(stmt, "FROM (VALUES (?, ?), (?, ?)) AS v(market_id, event_id)") {
		t.Fatalf("statement = %q, want one (?, ?) row per pair", stmt)
	}

	one := linkStatement(1)
	if !strings.Contains(one, "FROM (VALUES (?, ?)) AS v(market_id, event_id)") {
		t.Fatalf("single-pair statement = %q", one)
	}

	if got := strings.Count(linkStatement(5), "(?, ?)"); got != 5 {
		t.Fatalf("row count = %d, want 5", got)
	}
}

func TestLinkArgsFlattenInStatementOrder(t *testing.T) {
	args := linkArgs([]MarketEventLink{
		{MarketID: "m1", EventID: "e1"},
		{MarketID: "m2", EventID: "e2"},
	})
	want := []interface{}{"m1", "e1", "m2", "e2"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %v, want %v", i, args[i], want[i])
		}
	}
}

func assignmentSQL(t *testing.T, assignments map[string]interface{}, column string) string {
	t.Helper()
	v, ok := assignments[column]
	if !ok {
		t.Fatalf("no assignment for column %s", column)
	}
	expr, ok := v.(clause.Expr)
	if !ok {
		t.Fatalf("assignment for %s is not an expression: %T", column, v)
	}
	return expr.SQL
}

func TestEventUpsertMergeRule(t *testing.T) {
	a := eventUpsertAssignments()

	if got := assignmentSQL(t, a, "closed"); got != "events.closed OR EXCLUDED.closed" {
		t.Fatalf("closed merge = %q", got)
	}
	if got := assignmentSQL(t, a, "archived"); got != "events.archived OR EXCLUDED.archived" {
		t.Fatalf("archived merge = %q", got)
	}

	// active must be recomputed from the merged flags, not taken verbatim
	active := assignmentSQL(t, a, "active")
	if !strings.Contains(active, "events.closed OR EXCLUDED.closed") || !strings.Contains(active, "THEN FALSE") {
		t.Fatalf("active recomputation = %q", active)
	}
}

func TestMarketUpsertMergeRule(t *testing.T) {
	a := marketUpsertAssignments()

	if got := assignmentSQL(t, a, "closed"); got != "markets.closed OR EXCLUDED.closed" {
		t.Fatalf("closed merge = %q", got)
	}
	if got := assignmentSQL(t, a, "archived"); got != "markets.archived OR EXCLUDED.archived" {
		t.Fatalf("archived merge = %q", got)
	}
	if got := assignmentSQL(t, a, "resolved"); got != "markets.resolved OR EXCLUDED.resolved" {
		t.Fatalf("resolved merge = %q", got)
	}

	active := assignmentSQL(t, a, "active")
	if !strings.Contains(active, "markets.closed OR EXCLUDED.closed") || !strings.Contains(active, "THEN FALSE") {
		t.Fatalf("active recomputation = %q", active)
	}

	// winner only lands alongside a resolving upsert
	winner := assignmentSQL(t, a, "winning_outcome")
	if !strings.Contains(winner, "CASE WHEN EXCLUDED.resolved") {
		t.Fatalf("winning_outcome guard = %q", winner)
	}

	if _, ok := a["event_id"]; ok {
		t.Fatal("market upsert must never assign event_id")
	}
	if _, ok := a["price_updated_at"]; ok {
		t.Fatal("market upsert must never assign price_updated_at")
	}
}

func TestOpCtxAppliesQueryTimeout(t *testing.T) {
	bounded := New(nil, 250*time.Millisecond)
	ctx, cancel := bounded.opCtx(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("configured query timeout did not bound the context")
	}

	unbounded := New(nil, 0)
	ctx, cancel = unbounded.opCtx(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("zero query timeout must leave the context unbounded")
	}
}
