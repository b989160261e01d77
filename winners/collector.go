// Package winners collects the retailers that sold tier-1 and tier-2 winning
// tickets for a draw and turns them into win records.
package winners

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncerr"
)

const sourceName = "winning retailers page"

// Scraped is one winning-retailer row.
type Scraped struct {
	DrawNo     int
	Tier       int
	RetailerID int64
	Name       string
	Address    string
	Origin     models.Origin
}

// Collector walks the winning-retailer pages of a draw.
type Collector struct {
	client *source.Client
	cfg    config.WinnersConfig
	logger *zap.Logger
}

func NewCollector(client *source.Client, cfg config.WinnersConfig, logger *zap.Logger) *Collector {
	return &Collector{client: client, cfg: cfg, logger: logger}
}

// Collect returns every tier-1 and tier-2 winning retailer of a draw. The
// first page carries both tiers; tier 2 continues on later pages until the
// pager no longer marks a current page.
func (c *Collector) Collect(ctx context.Context, drawNo int) ([]Scraped, error) {
	doc, err := c.page(ctx, drawNo, 1)
	if err != nil {
		return nil, err
	}
	groups, err := c.groups(doc, 1)
	if err != nil {
		return nil, err
	}

	out := c.parseTable(groups.Eq(0).Find(c.cfg.TableSel).First(), drawNo, 1)
	out = append(out, c.parseTable(groups.Eq(1).Find(c.cfg.TableSel).First(), drawNo, 2)...)

	for page := 2; ; page++ {
		if c.cfg.MaxPages > 0 && page > c.cfg.MaxPages {
			c.logger.Warn("winners page cap reached", zap.Int("draw_no", drawNo), zap.Int("max_pages", c.cfg.MaxPages))
			break
		}
		if err := c.client.Pace(ctx); err != nil {
			return nil, err
		}
		doc, err := c.page(ctx, drawNo, page)
		if err != nil {
			return nil, err
		}
		if doc.Find(c.cfg.PageMarker).Length() == 0 {
			break
		}
		groups, err := c.groups(doc, page)
		if err != nil {
			return nil, err
		}
		out = append(out, c.parseTable(groups.Eq(1).Find(c.cfg.TableSel).First(), drawNo, 2)...)
	}

	c.logger.Info("collected winning retailers", zap.Int("draw_no", drawNo), zap.Int("rows", len(out)))
	return out, nil
}

func (c *Collector) page(ctx context.Context, drawNo, page int) (*goquery.Document, error) {
	q := map[string]string{c.cfg.DrawParam: strconv.Itoa(drawNo)}
	if page > 1 {
		q[c.cfg.PageParam] = strconv.Itoa(page)
	}
	doc, err := c.client.Get(ctx, c.cfg.URL, q, c.cfg.Referer)
	if err != nil {
		return nil, fmt.Errorf("draw %d page %d: %w", drawNo, page, err)
	}
	return doc, nil
}

func (c *Collector) groups(doc *goquery.Document, page int) (*goquery.Selection, error) {
	groups := doc.Find(c.cfg.GroupSel)
	if groups.Length() < 2 {
		return nil, syncerr.Format(sourceName, fmt.Sprintf("page %d: want 2 table groups, found %d", page, groups.Length()), nil)
	}
	return groups, nil
}

// parseTable reads one tier table. A table whose body is a single cell is
// the "no winners" placeholder.
func (c *Collector) parseTable(table *goquery.Selection, drawNo, tier int) []Scraped {
	if table.Find("tbody tr td").Length() <= 1 {
		return nil
	}

	var out []Scraped
	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		s, err := c.parseRow(row, drawNo, tier)
		if err != nil {
			c.logger.Warn("skipping winners row",
				zap.Int("draw_no", drawNo),
				zap.Int("tier", tier),
				zap.Int("row", i),
				zap.Error(err),
			)
			return
		}
		out = append(out, s)
	})
	return out
}

// Tier-1 rows: no, name, origin, address, map link.
// Tier-2 rows: no, name, address, map link.
func (c *Collector) parseRow(row *goquery.Selection, drawNo, tier int) (Scraped, error) {
	cells := row.Find("td")
	linkCol, addrCol := 3, 2
	if tier == 1 {
		linkCol, addrCol = 4, 3
	}
	if cells.Length() <= linkCol {
		return Scraped{}, fmt.Errorf("row has %d cells", cells.Length())
	}

	onclick, _ := cells.Eq(linkCol).Find("a").First().Attr("onclick")
	id, err := retailerID(onclick)
	if err != nil {
		return Scraped{}, err
	}

	s := Scraped{
		DrawNo:     drawNo,
		Tier:       tier,
		RetailerID: id,
		Name:       strings.TrimSpace(cells.Eq(1).Text()),
		Address:    strings.TrimSpace(cells.Eq(addrCol).Text()),
		Origin:     models.OriginUnspecified,
	}
	if tier == 1 {
		label := strings.TrimSpace(cells.Eq(2).Text())
		origin, ok := models.ParseOrigin(label)
		if !ok {
			c.logger.Warn("unrecognized ticket origin",
				zap.Int("draw_no", drawNo),
				zap.Int64("retailer_id", id),
				zap.String("label", label),
			)
		}
		s.Origin = origin
	}
	return s, nil
}

// retailerID pulls the quoted id out of a handler such as
// "javascript:showMapPage('11110001')".
func retailerID(onclick string) (int64, error) {
	parts := strings.Split(onclick, "'")
	if len(parts) < 2 {
		return 0, fmt.Errorf("no retailer id in %q", onclick)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad retailer id in %q", onclick)
	}
	return id, nil
}
