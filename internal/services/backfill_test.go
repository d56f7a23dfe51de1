package services

import (
	"context"
	"testing"

	"github.com/polyndex/indexer/internal/models"
	"github.com/polyndex/indexer/internal/polymarket/clob"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	points map[string][]clob.PricePoint
}

func (f *fakeHistory) GetPricesHistory(_ context.Context, conditionID, _ string) ([]clob.PricePoint, error) {
	return f.points[conditionID], nil
}

type fakeBackfillStore struct {
	markets map[string]*models.Market
	missing []models.Market
	samples map[string]models.PriceSample // keyed like the unique index
}

func newFakeBackfillStore() *fakeBackfillStore {
	return &fakeBackfillStore{
		markets: make(map[string]*models.Market),
		samples: make(map[string]models.PriceSample),
	}
}

func (f *fakeBackfillStore) GetMarket(_ context.Context, id string) (*models.Market, error) {
	return f.markets[id], nil
}

func (f *fakeBackfillStore) ActiveMarketsWithoutSamples(context.Context, int) ([]models.Market, error) {
	return f.missing, nil
}

func (f *fakeBackfillStore) InsertPriceSamples(_ context.Context, samples []models.PriceSample) error {
	for _, s := range samples {
		key := s.MarketID + "|" + s.TokenID + "|" + s.Timestamp.String() + "|" + s.Source
		if _, ok := f.samples[key]; !ok {
			f.samples[key] = s
		}
	}
	return nil
}

func TestBackfillBinaryExpansion(t *testing.T) {
	st := newFakeBackfillStore()
	st.markets["m1"] = &models.Market{
		ID:              "m1",
		ConditionID:     "c1",
		OutcomeTokenIDs: models.StringArray{"yes", "no"},
	}
	history := &fakeHistory{points: map[string][]clob.PricePoint{
		"c1": {{Timestamp: 1700000000, Price: 0.3}, {Timestamp: 1700000060, Price: 0.35}},
	}}

	b := NewBackfill(history, st)
	n, err := b.BackfillMarket(context.Background(), "m1", clob.Interval1D)
	require.NoError(t, err)
	require.Equal(t, 4, n, "binary markets get two samples per point")

	var yes, no int
	for _, s := range st.samples {
		require.Equal(t, models.PriceSourceClob, s.Source)
		switch s.TokenID {
		case "yes":
			yes++
		case "no":
			no++
			require.InDelta(t, 1-0.3, s.Price, 0.051, "complement price expected")
		}
	}
	require.Equal(t, 2, yes)
	require.Equal(t, 2, no)

	// Rerunning is idempotent
	_, err = b.BackfillMarket(context.Background(), "m1", clob.Interval1D)
	require.NoError(t, err)
	require.Len(t, st.samples, 4)
}

func TestBackfillSingleTokenMarket(t *testing.T) {
	st := newFakeBackfillStore()
	st.markets["m1"] = &models.Market{ID: "m1", ConditionID: "c1", OutcomeTokenIDs: models.StringArray{"only"}}
	history := &fakeHistory{points: map[string][]clob.PricePoint{
		"c1": {{Timestamp: 1700000000, Price: 0.8}},
	}}

	n, err := NewBackfill(history, st).BackfillMarket(context.Background(), "m1", clob.IntervalMax)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBackfillMultiOutcomePrimaryOnly(t *testing.T) {
	st := newFakeBackfillStore()
	st.markets["m1"] = &models.Market{
		ID:              "m1",
		ConditionID:     "c1",
		OutcomeTokenIDs: models.StringArray{"a", "b", "c"},
	}
	history := &fakeHistory{points: map[string][]clob.PricePoint{
		"c1": {{Timestamp: 1700000000, Price: 0.2}},
	}}

	n, err := NewBackfill(history, st).BackfillMarket(context.Background(), "m1", clob.Interval1W)
	require.NoError(t, err)
	require.Equal(t, 1, n, "N>2 markets record the primary token only")
	for _, s := range st.samples {
		require.Equal(t, "a", s.TokenID)
	}
}

func TestBackfillMissingWalksEveryMarket(t *testing.T) {
	st := newFakeBackfillStore()
	st.markets["m1"] = &models.Market{ID: "m1", ConditionID: "c1", OutcomeTokenIDs: models.StringArray{"t1", "t2"}}
	st.markets["m2"] = &models.Market{ID: "m2", ConditionID: "c2", OutcomeTokenIDs: models.StringArray{"t3", "t4"}}
	st.missing = []models.Market{*st.markets["m1"], *st.markets["m2"]}
	history := &fakeHistory{points: map[string][]clob.PricePoint{
		"c1": {{Timestamp: 1700000000, Price: 0.4}},
		"c2": {{Timestamp: 1700000000, Price: 0.6}},
	}}

	require.NoError(t, NewBackfill(history, st).BackfillMissing(context.Background(), clob.IntervalMax))
	require.Len(t, st.samples, 4)
}
