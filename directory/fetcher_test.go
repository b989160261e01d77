package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncerr"
)

func directoryConfig(url string, regions ...string) config.DirectoryConfig {
	return config.DirectoryConfig{
		URL:           url,
		Regions:       regions,
		ItemsKey:      "arr",
		TotalPagesKey: "totalPage",
		IDKey:         "RTLRID",
		NameKey:       "FIRMNM",
		PhoneKey:      "RTLRSTRTELNO",
		Addr1Key:      "BPLCLOCPLC1",
		Addr2Key:      "BPLCLOCPLC2",
		Addr3Key:      "BPLCLOCPLC3",
		Addr4Key:      "BPLCLOCPLCDTLADRES",
		RoadAddrKey:   "BPLCDORODTLADRES",
		LongitudeKey:  "LONGITUDE",
		LatitudeKey:   "LATITUDE",
	}
}

func row(id any, name string) string {
	idJSON := fmt.Sprintf("%v", id)
	if s, ok := id.(string); ok {
		idJSON = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`{"RTLRID":%s,"FIRMNM":%q,"RTLRSTRTELNO":"02-000-0000","BPLCLOCPLC1":"서울","BPLCLOCPLC2":"강남구","BPLCLOCPLC3":"역삼동","BPLCLOCPLCDTLADRES":"1-1 &&#35;40;1층&&#35;41;","BPLCDORODTLADRES":"테헤란로 1","LONGITUDE":127.0276,"LATITUDE":"37.4979"}`, idJSON, name)
}

type pages map[string]string

func newDirectoryServer(t *testing.T, p pages) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("searchType"))
		assert.Equal(t, "001", r.PostForm.Get("rtlrSttus"))
		key := r.PostForm.Get("sltSIDO") + "/" + r.PostForm.Get("nowPage")
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		body, ok := p[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	return srv, &seen
}

func newFetcher(cfg config.DirectoryConfig) *Fetcher {
	client := source.NewWithOptions(source.Options{Timeout: 5 * time.Second}, zap.NewNop())
	return NewFetcher(client, cfg, zap.NewNop())
}

func TestFetchAllWalksEveryPage(t *testing.T) {
	srv, seen := newDirectoryServer(t, pages{
		"서울/1": `{"totalPage":3,"arr":[` + row("11110001", "첫집") + `,` + row("bad", "broken") + `]}`,
		"서울/2": `{"totalPage":3,"arr":[` + row(11110002, "둘집") + `]}`,
		"서울/3": `{"totalPage":"3","arr":[` + row(11110001, "첫집 이전") + `]}`,
		"세종/1": `{"totalPage":1,"arr":[` + row(36110001, "세종점") + `]}`,
	})
	defer srv.Close()

	got, err := newFetcher(directoryConfig(srv.URL, "서울", "세종")).FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"서울/1", "서울/2", "서울/3", "세종/1"}, *seen)
	require.Len(t, got, 3)

	first := got[11110001]
	assert.Equal(t, "첫집 이전", first.Name, "later sightings win")
	assert.Equal(t, "1-1 (1층)", first.Addr4)
	assert.Equal(t, "테헤란로 1", first.RoadAddr)
	assert.InDelta(t, 127.0276, first.Longitude, 1e-9)
	assert.InDelta(t, 37.4979, first.Latitude, 1e-9)
}

func TestFetchAllFailsOnAnyPage(t *testing.T) {
	srv, _ := newDirectoryServer(t, pages{
		"서울/1": `{"totalPage":2,"arr":[` + row(1, "a") + `]}`,
	})
	defer srv.Close()

	got, err := newFetcher(directoryConfig(srv.URL, "서울")).FetchAll(context.Background())
	assert.Nil(t, got)
	var ne *syncerr.NetworkError
	assert.True(t, errors.As(err, &ne), "got %v", err)
}

func TestFetchAllRejectsEmptyResult(t *testing.T) {
	srv, _ := newDirectoryServer(t, pages{
		"서울/1": `{"totalPage":1,"arr":[]}`,
	})
	defer srv.Close()

	_, err := newFetcher(directoryConfig(srv.URL, "서울")).FetchAll(context.Background())
	var fe *syncerr.SourceFormatError
	assert.True(t, errors.As(err, &fe), "got %v", err)
}

func TestFetchAllRejectsMissingKeys(t *testing.T) {
	srv, _ := newDirectoryServer(t, pages{
		"서울/1": `{"items":[]}`,
	})
	defer srv.Close()

	_, err := newFetcher(directoryConfig(srv.URL, "서울")).FetchAll(context.Background())
	var fe *syncerr.SourceFormatError
	assert.True(t, errors.As(err, &fe), "got %v", err)
}
