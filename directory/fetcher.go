// Package directory fetches the official retailer directory and reconciles
// it against the stored retailers.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/normalize"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncerr"
)

const sourceName = "retailer directory"

// Candidate is one retailer as reported by the directory.
type Candidate struct {
	ID        int64
	Name      string
	Phone     string
	Addr1     string
	Addr2     string
	Addr3     string
	Addr4     string
	RoadAddr  string
	Longitude float64
	Latitude  float64
}

// Fetcher walks every region and page of the directory endpoint.
type Fetcher struct {
	client *source.Client
	cfg    config.DirectoryConfig
	logger *zap.Logger
}

func NewFetcher(client *source.Client, cfg config.DirectoryConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// FetchAll returns every active retailer keyed by id. Any failed page fails
// the whole fetch so a truncated listing is never reconciled.
func (f *Fetcher) FetchAll(ctx context.Context) (map[int64]Candidate, error) {
	out := make(map[int64]Candidate)

	for i, region := range f.cfg.Regions {
		total, err := f.fetchPage(ctx, region, 1, out)
		if err != nil {
			return nil, err
		}
		f.logger.Info("directory region",
			zap.Int("index", i),
			zap.String("region", region),
			zap.Int("total_pages", total),
		)

		for page := 2; page <= total; page++ {
			if _, err := f.fetchPage(ctx, region, page, out); err != nil {
				return nil, err
			}
		}
	}

	if len(out) == 0 {
		return nil, syncerr.Format(sourceName, "no retailers returned", nil)
	}
	return out, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, region string, page int, out map[int64]Candidate) (int, error) {
	form := map[string]string{
		"searchType": "1",
		"nowPage":    strconv.Itoa(page),
		"sltSIDO":    region,
		"sltGUGUN":   "",
		"rtlrSttus":  "001",
	}
	body, err := f.client.PostForm(ctx, f.cfg.URL, form, f.cfg.Referer)
	if err != nil {
		return 0, fmt.Errorf("%s page %d: %w", region, page, err)
	}

	rows, total, err := f.decodePage(body)
	if err != nil {
		return 0, fmt.Errorf("%s page %d: %w", region, page, err)
	}

	for _, row := range rows {
		c, err := f.candidate(row)
		if err != nil {
			f.logger.Warn("skipping directory row",
				zap.String("region", region),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		out[c.ID] = c
	}

	if err := f.client.Pace(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

func (f *Fetcher) decodePage(body []byte) ([]map[string]any, int, error) {
	var payload map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, 0, syncerr.Format(sourceName, "invalid json", err)
	}

	rawItems, ok := payload[f.cfg.ItemsKey]
	if !ok {
		return nil, 0, syncerr.Format(sourceName, fmt.Sprintf("missing %q", f.cfg.ItemsKey), nil)
	}
	var rows []map[string]any
	dec = json.NewDecoder(bytes.NewReader(rawItems))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, 0, syncerr.Format(sourceName, fmt.Sprintf("%q is not a list", f.cfg.ItemsKey), err)
	}

	var total json.Number
	rawTotal, ok := payload[f.cfg.TotalPagesKey]
	if !ok {
		return nil, 0, syncerr.Format(sourceName, fmt.Sprintf("missing %q", f.cfg.TotalPagesKey), nil)
	}
	if err := json.Unmarshal(bytes.Trim(rawTotal, `"`), &total); err != nil {
		return nil, 0, syncerr.Format(sourceName, "bad page count", err)
	}
	n, err := total.Int64()
	if err != nil {
		return nil, 0, syncerr.Format(sourceName, "bad page count", err)
	}
	return rows, int(n), nil
}

func (f *Fetcher) candidate(row map[string]any) (Candidate, error) {
	idText := str(row[f.cfg.IDKey])
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || id <= 0 {
		return Candidate{}, fmt.Errorf("bad retailer id %q", idText)
	}
	return Candidate{
		ID:        id,
		Name:      normalize.Unescape(str(row[f.cfg.NameKey])),
		Phone:     str(row[f.cfg.PhoneKey]),
		Addr1:     str(row[f.cfg.Addr1Key]),
		Addr2:     str(row[f.cfg.Addr2Key]),
		Addr3:     str(row[f.cfg.Addr3Key]),
		Addr4:     normalize.Unescape(str(row[f.cfg.Addr4Key])),
		RoadAddr:  normalize.Unescape(str(row[f.cfg.RoadAddrKey])),
		Longitude: coord(row[f.cfg.LongitudeKey]),
		Latitude:  coord(row[f.cfg.LatitudeKey]),
	}, nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// coord reads a coordinate; missing or malformed values are zero.
func coord(v any) float64 {
	n, err := strconv.ParseFloat(str(v), 64)
	if err != nil {
		return 0
	}
	return n
}
