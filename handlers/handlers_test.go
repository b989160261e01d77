package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/db"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/syncstate"
)

var testKey = []byte("test-secret")

func setupServer(t *testing.T) (*echo.Echo, *db.Store, *syncstate.File) {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.CreateTables(context.Background(), bunDB))

	store := db.NewStore(bunDB)
	hash, err := HashPassword("ops", "correct horse")
	require.NoError(t, err)
	require.NoError(t, store.SaveOperator(context.Background(), &models.Operator{Username: "ops", Password: hash}))

	cursor := syncstate.New(filepath.Join(t.TempDir(), "dbsync.json"))
	e := echo.New()
	New(store, cursor, testKey, zap.NewNop()).Routes(e)
	return e, store, cursor
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signin(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := do(e, http.MethodPost, "/signin", `{"username":"ops","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func TestSigninRejectsBadCredentials(t *testing.T) {
	e, _, _ := setupServer(t)

	rec := do(e, http.MethodPost, "/signin", `{"username":"ops","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/signin", `{"username":"nobody","password":"correct horse"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusNeedsToken(t *testing.T) {
	e, _, _ := setupServer(t)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/status", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/status", "", "not-a-jwt").Code)
}

func TestStatus(t *testing.T) {
	e, store, cursor := setupServer(t)
	ctx := context.Background()
	token := signin(t, e)

	d := &models.Draw{DrawNo: 1150, DrawDate: "2024-12-14"}
	d.SetNumbers([]int{8, 9, 18, 35, 39, 40}, 25)
	require.NoError(t, store.UpsertDraw(ctx, d))
	require.NoError(t, store.BulkCreateRetailers(ctx, []models.Retailer{{ID: 1, Enabled: true}}))
	require.NoError(t, cursor.Mark(syncstate.KeyDraw, "1150"))

	rec := do(e, http.MethodGet, "/api/status", "", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1150, got.Stats.LastDraw)
	assert.Equal(t, 1, got.Stats.EnabledRetailers)
	assert.Equal(t, "1150", got.Cursors[syncstate.KeyDraw].Key)
}

func TestDrawAndRetailerLookups(t *testing.T) {
	e, store, _ := setupServer(t)
	ctx := context.Background()
	token := signin(t, e)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/draws/latest", "", token).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/draws/abc", "", token).Code)

	d := &models.Draw{DrawNo: 7, DrawDate: "2002-12-07"}
	d.SetNumbers([]int{1, 2, 3, 4, 5, 6}, 7)
	require.NoError(t, store.UpsertDraw(ctx, d))
	require.NoError(t, store.BulkCreateRetailers(ctx, []models.Retailer{{ID: 11, Enabled: true, Name: "행운"}}))
	require.NoError(t, store.BulkCreateWinRecords(ctx, []models.WinRecord{{DrawNo: 7, RetailerID: 11, Tier: 1, Origin: models.OriginAuto}}))

	rec := do(e, http.MethodGet, "/api/draws/latest", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		DrawNo int                `json:"drawNo"`
		Wins   []models.WinRecord `json:"wins"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 7, got.DrawNo)
	require.Len(t, got.Wins, 1)
	assert.Equal(t, int64(11), got.Wins[0].RetailerID)

	rec = do(e, http.MethodGet, "/api/retailers/11", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "행운")

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/retailers/12", "", token).Code)
}
