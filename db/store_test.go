package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/padraicbc/lottosync/directory"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/winners"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, CreateTables(context.Background(), bunDB))
	return NewStore(bunDB)
}

func testDraw(no int) *models.Draw {
	d := &models.Draw{DrawNo: no, DrawDate: "2024-12-14", TotalSales: 115263458000}
	d.SetNumbers([]int{8, 9, 18, 35, 39, 40}, 25)
	for tier := 1; tier <= models.TierCount; tier++ {
		d.Prizes = append(d.Prizes, models.Prize{Tier: tier, Total: int64(1000 * tier), Winners: int64(tier), Each: 1000})
	}
	return d
}

func TestUpsertDrawKeepsDetail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetLastDraw(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	d := testDraw(1150)
	require.NoError(t, s.UpsertDraw(ctx, d))

	d.DrawOrder = []int{25, 40, 8, 39, 9, 35, 18}
	d.Rehearsal = []int{7, 14, 21, 28, 35, 42, 45}
	d.BallSet, d.Machine, d.Orientation = 3, 2, models.OrientationHorizontal
	require.NoError(t, s.UpdateDrawDetail(ctx, d))

	again := testDraw(1150)
	again.TotalSales = 1
	require.NoError(t, s.UpsertDraw(ctx, again))

	got, err := s.GetDraw(ctx, 1150)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalSales)
	assert.Equal(t, []int{25, 40, 8, 39, 9, 35, 18}, got.DrawOrder)
	assert.Equal(t, 2, got.Machine)
	assert.Len(t, got.Prizes, models.TierCount)
	assert.NoError(t, got.Validate())

	last, err := s.GetLastDraw(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1150, last.DrawNo)
}

func TestUpdateDrawDetailMissing(t *testing.T) {
	s := setupTestStore(t)
	err := s.UpdateDrawDetail(context.Background(), testDraw(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyDirectoryPlan(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BulkCreateRetailers(ctx, []models.Retailer{
		{ID: 1, Enabled: true, Name: "old name", Wins1: 4},
		{ID: 2, Enabled: true, Name: "gone"},
		{ID: models.OnlineStoreID, Enabled: true, Name: "online"},
	}))

	existing, err := s.ListRetailers(ctx)
	require.NoError(t, err)

	candidates := map[int64]directory.Candidate{
		1: {ID: 1, Name: "new name", Longitude: 127.1, Latitude: 37.5},
		3: {ID: 3, Name: "fresh"},
	}
	plan := directory.Reconcile(candidates, existing, directory.Options{
		GeoTolerance: directory.DefaultGeoTolerance,
		SentinelID:   models.OnlineStoreID,
	})
	require.NoError(t, s.ApplyDirectoryPlan(ctx, plan))

	rows, err := s.ListRetailers(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	byID := map[int64]models.Retailer{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	assert.Equal(t, "new name", byID[1].Name)
	assert.Equal(t, 127.1, byID[1].Longitude)
	assert.Equal(t, 4, byID[1].Wins1, "counters survive updates")
	assert.False(t, byID[2].Enabled)
	assert.True(t, byID[3].Enabled)
	assert.True(t, byID[models.OnlineStoreID].Enabled)

	// A second pass with the same fetch changes nothing.
	plan = directory.Reconcile(candidates, rows, directory.Options{SentinelID: models.OnlineStoreID})
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Disable)
}

func TestApplyWinsIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDraw(ctx, testDraw(1150)))
	require.NoError(t, s.BulkCreateRetailers(ctx, []models.Retailer{{ID: 10, Enabled: true, Name: "known"}}))

	scraped := []winners.Scraped{
		{DrawNo: 1150, Tier: 1, RetailerID: 10, Origin: models.OriginAuto},
		{DrawNo: 1150, Tier: 2, RetailerID: 10},
		{DrawNo: 1150, Tier: 2, RetailerID: 20, Name: "stub", Address: "서울 1"},
	}
	for range 2 {
		existing, err := s.GetWinRecordsFor(ctx, 1150)
		require.NoError(t, err)
		known := map[int64]bool{}
		for _, sc := range scraped {
			if _, err := s.GetRetailer(ctx, sc.RetailerID); err == nil {
				known[sc.RetailerID] = true
			}
		}
		require.NoError(t, s.ApplyWins(ctx, winners.Apply(scraped, existing, known)))
	}

	wins, err := s.GetWinRecordsFor(ctx, 1150)
	require.NoError(t, err)
	assert.Len(t, wins, 3)

	known, err := s.GetRetailer(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, known.Wins1)
	assert.Equal(t, 1, known.Wins2)

	stub, err := s.GetRetailer(ctx, 20)
	require.NoError(t, err)
	assert.True(t, stub.Enabled)
	assert.Equal(t, "서울 1", stub.RoadAddr)
	assert.Equal(t, 1, stub.Wins2)
}

func TestRecountWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDraw(ctx, testDraw(1)))
	require.NoError(t, s.UpsertDraw(ctx, testDraw(2)))
	require.NoError(t, s.BulkCreateRetailers(ctx, []models.Retailer{
		{ID: 1, Enabled: true, Wins1: 99, Wins2: 99},
		{ID: 2, Enabled: true},
	}))
	require.NoError(t, s.BulkCreateWinRecords(ctx, []models.WinRecord{
		{DrawNo: 1, RetailerID: 1, Tier: 1, Origin: models.OriginManual},
		{DrawNo: 2, RetailerID: 1, Tier: 1, Origin: models.OriginAuto},
		{DrawNo: 2, RetailerID: 1, Tier: 2},
	}))

	n, err := s.RecountWins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	r, err := s.GetRetailer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Wins1)
	assert.Equal(t, 1, r.Wins2)
}

func TestStatsAndOperators(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	d := testDraw(5)
	d.Machine = 1
	require.NoError(t, s.UpsertDraw(ctx, d))
	require.NoError(t, s.BulkCreateRetailers(ctx, []models.Retailer{{ID: 1, Enabled: true}, {ID: 2}}))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{LastDraw: 5, DrawsWithDetail: 1, Retailers: 2, EnabledRetailers: 1}, st)

	require.NoError(t, s.SaveOperator(ctx, &models.Operator{Username: "ops", Password: "h1"}))
	require.NoError(t, s.SaveOperator(ctx, &models.Operator{Username: "ops", Password: "h2"}))
	op, err := s.GetOperator(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, "h2", op.Password)

	_, err = s.GetOperator(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}
