package gamma

import (
	"testing"
)

func TestParseStringListVariants(t *testing.T) {
	got := ParseStringList(`["Yes","No"]`)
	if len(got) != 2 || got[0] != "Yes" || got[1] != "No" {
		t.Fatalf("stringified array: %v", got)
	}

	got = ParseStringList([]interface{}{"a", "b"})
	if len(got) != 2 || got[0] != "a" {
		t.Fatalf("native array: %v", got)
	}

	if got := ParseStringList("not json"); got != nil {
		t.Fatalf("malformed input should return nil, got %v", got)
	}
	if got := ParseStringList(""); got != nil {
		t.Fatalf("empty input should return nil, got %v", got)
	}
	if got := ParseStringList(42); got != nil {
		t.Fatalf("unexpected type should return nil, got %v", got)
	}
}

func TestParseFloatListVariants(t *testing.T) {
	got := ParseFloatList(`["0.4","0.6"]`)
	if len(got) != 2 || got[0] != 0.4 || got[1] != 0.6 {
		t.Fatalf("stringified numeric array: %v", got)
	}

	got = ParseFloatList([]interface{}{0.25, "0.75"})
	if len(got) != 2 || got[0] != 0.25 || got[1] != 0.75 {
		t.Fatalf("mixed native array: %v", got)
	}

	if got := ParseFloatList("{{"); got != nil {
		t.Fatalf("malformed input should return nil, got %v", got)
	}
}

func TestMarketToModelKeepsArraysParallel(t *testing.T) {
	m := Market{
		ID:            "m1",
		ConditionID:   "0xcond",
		Outcomes:      `["Yes","No","Maybe"]`,
		OutcomePrices: `["0.5"]`,
		ClobTokenIds:  `["t1","t2"]`,
		Active:        true,
	}

	model := m.ToModel()
	if len(model.OutcomeTokenIDs) != 2 {
		t.Fatalf("token ids: %v", model.OutcomeTokenIDs)
	}
	if len(model.Outcomes) != 2 || len(model.OutcomePrices) != 2 {
		t.Fatalf("arrays not parallel: outcomes=%v prices=%v", model.Outcomes, model.OutcomePrices)
	}
	if model.OutcomePrices[1] != 0 {
		t.Fatalf("missing price should pad with zero, got %v", model.OutcomePrices[1])
	}
}

func TestMarketToModelTokenlessStaysParallel(t *testing.T) {
	m := Market{
		ID:            "m1",
		Outcomes:      `["A","B"]`,
		OutcomePrices: `["0.4","0.6"]`,
	}

	model := m.ToModel()
	if len(model.Outcomes) != 2 || len(model.OutcomeTokenIDs) != 2 || len(model.OutcomePrices) != 2 {
		t.Fatalf("arrays not parallel: outcomes=%v tokens=%v prices=%v",
			model.Outcomes, model.OutcomeTokenIDs, model.OutcomePrices)
	}
	if model.OutcomeTokenIDs[0] != "" || model.OutcomeTokenIDs[1] != "" {
		t.Fatalf("tokenless market must carry empty token slots, got %v", model.OutcomeTokenIDs)
	}
	if model.OutcomePrices[0] != 0.4 || model.OutcomePrices[1] != 0.6 {
		t.Fatalf("prices: %v", model.OutcomePrices)
	}

	// Unparsable token ids behave like absent ones
	m.ClobTokenIds = "garbage"
	model = m.ToModel()
	if len(model.Outcomes) != 2 || len(model.OutcomeTokenIDs) != 2 || len(model.OutcomePrices) != 2 {
		t.Fatalf("unparsable token ids broke parallelism: outcomes=%v tokens=%v prices=%v",
			model.Outcomes, model.OutcomeTokenIDs, model.OutcomePrices)
	}
}

func TestMarketToModelOutcomesFallback(t *testing.T) {
	m := Market{ID: "m1", Outcomes: "garbage", ClobTokenIds: `["t1","t2"]`}
	model := m.ToModel()
	if len(model.Outcomes) != 2 || model.Outcomes[0] != "Yes" || model.Outcomes[1] != "No" {
		t.Fatalf("expected Yes/No fallback, got %v", model.Outcomes)
	}
}

func TestDeriveResolution(t *testing.T) {
	if resolved, _ := deriveResolution(false, []float64{1, 0}); resolved {
		t.Fatal("open market must never be resolved")
	}

	resolved, winner := deriveResolution(true, []float64{0.0001, 0.9999})
	if !resolved || winner != 1 {
		t.Fatalf("settled market: resolved=%v winner=%d", resolved, winner)
	}

	if resolved, winner := deriveResolution(true, []float64{0.5, 0.5}); resolved || winner != -1 {
		t.Fatalf("unsettled closed market: resolved=%v winner=%d", resolved, winner)
	}
}

func TestEventToModelTags(t *testing.T) {
	e := Event{
		ID:     "e1",
		Title:  "Election",
		Tags:   []Tag{{Slug: "politics"}, {Slug: "us"}},
		Volume: "123.5",
	}

	model := e.ToModel()
	if len(model.Tags) != 2 || model.Tags[0] != "politics" {
		t.Fatalf("tags: %v", model.Tags)
	}
	if model.Volume != 123.5 {
		t.Fatalf("volume: %v", model.Volume)
	}
}
