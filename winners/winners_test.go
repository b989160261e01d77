package winners

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncerr"
)

func tier1Row(n int, name, origin, addr string, id string) string {
	return fmt.Sprintf(`<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td><a href="#" onclick="javascript:showMapPage('%s')">위치보기</a></td></tr>`,
		n, name, origin, addr, id)
}

func tier2Row(n int, name, addr string, id string) string {
	return fmt.Sprintf(`<tr><td>%d</td><td>%s</td><td>%s</td><td><a href="#" onclick="javascript:showMapPage('%s')">위치보기</a></td></tr>`,
		n, name, addr, id)
}

const emptyTable = `<tr><td colspan="5">조회 결과가 없습니다.</td></tr>`

func winnersPage(tier1, tier2 []string, current bool) string {
	t1 := strings.Join(tier1, "")
	if t1 == "" {
		t1 = emptyTable
	}
	t2 := strings.Join(tier2, "")
	if t2 == "" {
		t2 = emptyTable
	}
	pager := `<div class="paginate_common"><a href="#">1</a></div>`
	if current {
		pager = `<div class="paginate_common"><a href="#">1</a><a href="#" title="현재 페이지">2</a></div>`
	}
	return `<html><body>
<div class="group_content"><table class="tbl_data"><tbody>` + t1 + `</tbody></table></div>
<div class="group_content"><table class="tbl_data"><tbody>` + t2 + `</tbody></table>` + pager + `</div>
</body></html>`
}

func winnersConfig(url string) config.WinnersConfig {
	return config.WinnersConfig{
		URL:        url,
		DrawParam:  "drwNo",
		PageParam:  "nowPage",
		MaxPages:   10,
		GroupSel:   ".group_content",
		TableSel:   ".tbl_data",
		PageMarker: ".paginate_common a[title]",
	}
}

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1150", r.URL.Query().Get("drwNo"))
		page := r.URL.Query().Get("nowPage")
		if page == "" {
			page = "1"
		}
		body, ok := pages[page]
		if !ok {
			body = winnersPage(nil, nil, false)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
}

func newCollector(url string) *Collector {
	client := source.NewWithOptions(source.Options{Timeout: 5 * time.Second}, zap.NewNop())
	return NewCollector(client, winnersConfig(url), zap.NewNop())
}

func TestCollectWalksTierTwoPages(t *testing.T) {
	srv := serve(t, map[string]string{
		"1": winnersPage(
			[]string{
				tier1Row(1, "행운복권", "자동", "서울 강남구 1", "11110001"),
				tier1Row(2, "대박상회", "반자동", "부산 중구 2", "21110002"),
				tier1Row(3, "이상한집", "알수없음", "대구 3", "31110003"),
				tier1Row(4, "깨진행", "수동", "대구 4", "x"),
			},
			[]string{tier2Row(1, "둘째집", "인천 1", "41110001")},
			true,
		),
		"2": winnersPage(nil, []string{tier2Row(2, "셋째집", "광주 2", "51110002")}, true),
	})
	defer srv.Close()

	got, err := newCollector(srv.URL).Collect(context.Background(), 1150)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, Scraped{DrawNo: 1150, Tier: 1, RetailerID: 11110001, Name: "행운복권", Address: "서울 강남구 1", Origin: models.OriginAuto}, got[0])
	assert.Equal(t, models.OriginSemiAuto, got[1].Origin)
	assert.Equal(t, models.OriginUnspecified, got[2].Origin, "unknown origin keeps the winner")
	assert.Equal(t, Scraped{DrawNo: 1150, Tier: 2, RetailerID: 41110001, Name: "둘째집", Address: "인천 1", Origin: models.OriginUnspecified}, got[3])
	assert.Equal(t, int64(51110002), got[4].RetailerID)
}

func TestCollectEmptyTables(t *testing.T) {
	srv := serve(t, map[string]string{"1": winnersPage(nil, nil, false)})
	defer srv.Close()

	got, err := newCollector(srv.URL).Collect(context.Background(), 1150)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectMissingGroups(t *testing.T) {
	srv := serve(t, map[string]string{"1": `<html><body><p>점검중</p></body></html>`})
	defer srv.Close()

	_, err := newCollector(srv.URL).Collect(context.Background(), 1150)
	var fe *syncerr.SourceFormatError
	assert.True(t, errors.As(err, &fe), "got %v", err)
}

func TestApply(t *testing.T) {
	scraped := []Scraped{
		{DrawNo: 1150, Tier: 1, RetailerID: 1, Name: "a", Origin: models.OriginAuto},
		{DrawNo: 1150, Tier: 1, RetailerID: 1, Name: "a", Origin: models.OriginAuto},
		{DrawNo: 1150, Tier: 2, RetailerID: 1, Name: "a"},
		{DrawNo: 1150, Tier: 2, RetailerID: 2, Name: "new", Address: "세종 1"},
		{DrawNo: 1150, Tier: 2, RetailerID: 3, Name: "old"},
	}
	existing := []models.WinRecord{{DrawNo: 1150, Tier: 2, RetailerID: 3}}
	known := map[int64]bool{1: true, 3: true}

	m := Apply(scraped, existing, known)

	assert.Len(t, m.Wins, 3)
	require.Len(t, m.Stubs, 1)
	assert.Equal(t, models.Retailer{ID: 2, Enabled: true, Name: "new", RoadAddr: "세종 1"}, m.Stubs[0])
	assert.Equal(t, []Delta{
		{RetailerID: 1, Tier1: 1, Tier2: 1},
		{RetailerID: 2, Tier2: 1},
	}, m.Deltas)
}

func TestApplyIsIdempotent(t *testing.T) {
	scraped := []Scraped{
		{DrawNo: 7, Tier: 1, RetailerID: 1, Origin: models.OriginManual},
		{DrawNo: 7, Tier: 2, RetailerID: 2},
	}
	first := Apply(scraped, nil, map[int64]bool{})
	require.Len(t, first.Wins, 2)
	require.Len(t, first.Stubs, 2)

	second := Apply(scraped, first.Wins, map[int64]bool{1: true, 2: true})
	assert.True(t, second.Empty())
	assert.Empty(t, second.Deltas)
}
