// Package drawpage reads official draw results from the results page.
package drawpage

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/normalize"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncerr"
)

const sourceName = "draw page"

var dateRe = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)

// Parser fetches and parses the results page.
type Parser struct {
	client *source.Client
	cfg    config.DrawPageConfig
	logger *zap.Logger
}

func New(client *source.Client, cfg config.DrawPageConfig, logger *zap.Logger) *Parser {
	return &Parser{client: client, cfg: cfg, logger: logger}
}

// FetchLatest parses the page the source shows without a draw number.
func (p *Parser) FetchLatest(ctx context.Context) (*models.Draw, error) {
	return p.fetch(ctx, nil)
}

// FetchByNumber parses the page of a specific draw.
func (p *Parser) FetchByNumber(ctx context.Context, drawNo int) (*models.Draw, error) {
	d, err := p.fetch(ctx, map[string]string{p.cfg.NumberParam: strconv.Itoa(drawNo)})
	if err != nil {
		return nil, err
	}
	if d.DrawNo != drawNo {
		return nil, syncerr.Format(sourceName, fmt.Sprintf("asked for draw %d, page shows %d", drawNo, d.DrawNo), nil)
	}
	return d, nil
}

func (p *Parser) fetch(ctx context.Context, query map[string]string) (*models.Draw, error) {
	doc, err := p.client.Get(ctx, p.cfg.URL, query, p.cfg.Referer)
	if err != nil {
		return nil, err
	}
	d, err := Parse(doc, p.cfg)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("parsed draw page",
		zap.Int("draw_no", d.DrawNo),
		zap.String("draw_date", d.DrawDate),
		zap.Ints("numbers", d.AllNumbers()),
	)
	return d, nil
}

// Parse extracts and validates a draw from a results document. It never
// returns a partially filled record.
func Parse(doc *goquery.Document, sel config.DrawPageConfig) (*models.Draw, error) {
	d := &models.Draw{}

	numText := strings.TrimSpace(strings.ReplaceAll(doc.Find(sel.DrawNoSelector).First().Text(), "회", ""))
	if numText == "" {
		return nil, syncerr.Format(sourceName, "draw number missing", nil)
	}
	drawNo, err := normalize.Int(numText)
	if err != nil || drawNo <= 0 {
		return nil, syncerr.Format(sourceName, fmt.Sprintf("bad draw number %q", numText), err)
	}
	d.DrawNo = drawNo

	dateText := doc.Find(sel.DateSelector).First().Text()
	m := dateRe.FindStringSubmatch(dateText)
	if m == nil {
		return nil, syncerr.Format(sourceName, fmt.Sprintf("bad draw date %q", normalize.Collapse(dateText)), nil)
	}
	d.DrawDate = fmt.Sprintf("%s-%s-%s", m[1], pad(m[2]), pad(m[3]))

	var balls []int
	var ballErr error
	doc.Find(sel.BallSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		n, err := normalize.Int(s.Text())
		if err != nil {
			ballErr = syncerr.Format(sourceName, fmt.Sprintf("bad number %q", s.Text()), err)
			return false
		}
		balls = append(balls, n)
		return len(balls) < 7
	})
	if ballErr != nil {
		return nil, ballErr
	}
	if len(balls) != 7 {
		return nil, syncerr.Format(sourceName, fmt.Sprintf("want 7 numbers, found %d", len(balls)), nil)
	}
	d.SetNumbers(balls[:6], balls[6])

	rows := doc.Find(sel.TierRowSelector)
	if rows.Length() < models.TierCount {
		return nil, syncerr.Format(sourceName, fmt.Sprintf("want %d prize tiers, found %d", models.TierCount, rows.Length()), nil)
	}
	for i := 0; i < models.TierCount; i++ {
		prize, err := parseTier(rows.Eq(i), i+1)
		if err != nil {
			return nil, err
		}
		d.Prizes = append(d.Prizes, prize)
	}
	d.FirstAuto, d.FirstManual, d.FirstSemiAuto = originBreakdown(rows.Eq(0))

	if sales := doc.Find(sel.SalesSelector).First().Text(); strings.TrimSpace(sales) != "" {
		if d.TotalSales, err = normalize.Amount(sales); err != nil {
			return nil, syncerr.Format(sourceName, fmt.Sprintf("bad sales amount %q", sales), err)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseTier(row *goquery.Selection, tier int) (models.Prize, error) {
	cells := row.Find("td")
	if cells.Length() < 4 {
		return models.Prize{}, syncerr.Format(sourceName, fmt.Sprintf("tier %d row has %d cells", tier, cells.Length()), nil)
	}
	var vals [3]int64
	for i := range vals {
		text := cells.Eq(i + 1).Text()
		v, err := normalize.Amount(text)
		if err != nil {
			return models.Prize{}, syncerr.Format(sourceName, fmt.Sprintf("tier %d: bad amount %q", tier, strings.TrimSpace(text)), err)
		}
		vals[i] = v
	}
	return models.Prize{Tier: tier, Total: vals[0], Winners: vals[1], Each: vals[2]}, nil
}

// originBreakdown reads the "자동 N / 수동 N / 반자동 N" lines of the
// first-tier remarks cell. Missing values count as zero.
func originBreakdown(row *goquery.Selection) (auto, manual, semi int) {
	cells := row.Find("td")
	if cells.Length() <= 5 {
		return 0, 0, 0
	}
	cell := cells.Eq(5)
	cell.Find("br").ReplaceWithHtml("\n")
	for _, line := range normalize.Lines(cell.Text()) {
		switch {
		case strings.HasPrefix(line, "반자동"):
			semi = atoiOrZero(strings.TrimPrefix(line, "반자동"))
		case strings.HasPrefix(line, "자동"):
			auto = atoiOrZero(strings.TrimPrefix(line, "자동"))
		case strings.HasPrefix(line, "수동"):
			manual = atoiOrZero(strings.TrimPrefix(line, "수동"))
		}
	}
	return auto, manual, semi
}

func atoiOrZero(s string) int {
	n, err := normalize.Int(s)
	if err != nil {
		return 0
	}
	return n
}

func pad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
