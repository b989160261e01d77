package models

import (
	"strings"

	"github.com/uptrace/bun"
)

// Origin is how a winning ticket's numbers were chosen.
type Origin int

const (
	OriginUnspecified Origin = 0
	OriginAuto        Origin = 1
	OriginSemiAuto    Origin = 2
	OriginManual      Origin = 3
)

func (o Origin) String() string {
	switch o {
	case OriginAuto:
		return "auto"
	case OriginSemiAuto:
		return "semi-auto"
	case OriginManual:
		return "manual"
	default:
		return "unspecified"
	}
}

// ParseOrigin maps the origin label shown by the winners page. Unknown
// labels map to OriginUnspecified with ok=false.
func ParseOrigin(label string) (Origin, bool) {
	switch strings.TrimSpace(label) {
	case "자동":
		return OriginAuto, true
	case "반자동":
		return OriginSemiAuto, true
	case "수동":
		return OriginManual, true
	case "-", "":
		return OriginUnspecified, true
	default:
		return OriginUnspecified, false
	}
}

// WinRecord links a retailer to a tier-1 or tier-2 win in a draw.
type WinRecord struct {
	bun.BaseModel `bun:"table:win_records,alias:w"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	DrawNo     int    `bun:"draw_no,notnull,unique:win_key" json:"drawNo"`
	RetailerID int64  `bun:"retailer_id,notnull,unique:win_key" json:"retailerID"`
	Tier       int    `bun:"tier,notnull,unique:win_key" json:"tier"`
	Origin     Origin `bun:"origin,notnull,unique:win_key" json:"origin"`

	Draw     *Draw     `bun:"rel:belongs-to,join:draw_no=draw_no" json:"-"`
	Retailer *Retailer `bun:"rel:belongs-to,join:retailer_id=id" json:"-"`
}

// WinKey identifies a win independent of its database id.
type WinKey struct {
	DrawNo     int
	RetailerID int64
	Tier       int
	Origin     Origin
}

func (w WinRecord) Key() WinKey {
	return WinKey{DrawNo: w.DrawNo, RetailerID: w.RetailerID, Tier: w.Tier, Origin: w.Origin}
}
