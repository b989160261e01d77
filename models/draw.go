package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/lottosync/syncerr"
)

const (
	MinBall   = 1
	MaxBall   = 45
	TierCount = 5
)

// Orientation is the ball-arrangement flag reported by the community post.
type Orientation int

const (
	OrientationUnknown    Orientation = 0
	OrientationHorizontal Orientation = 1
	OrientationVertical   Orientation = 2
)

// Prize is one prize tier of a draw.
type Prize struct {
	Tier    int   `json:"tier"`
	Total   int64 `json:"total"`
	Winners int64 `json:"winners"`
	Each    int64 `json:"each"`
}

// Draw is the canonical result of one weekly draw.
type Draw struct {
	bun.BaseModel `bun:"table:draws,alias:d"`

	DrawNo   int    `bun:"draw_no,pk" json:"drawNo"`
	DrawDate string `bun:"draw_date,notnull" json:"drawDate"`

	Num1  int `bun:"num1,notnull" json:"num1"`
	Num2  int `bun:"num2,notnull" json:"num2"`
	Num3  int `bun:"num3,notnull" json:"num3"`
	Num4  int `bun:"num4,notnull" json:"num4"`
	Num5  int `bun:"num5,notnull" json:"num5"`
	Num6  int `bun:"num6,notnull" json:"num6"`
	Bonus int `bun:"bonus,notnull" json:"bonus"`

	Prizes []Prize `bun:"prizes,type:json" json:"prizes"`

	// Tier-1 winners by ticket origin.
	FirstAuto     int `bun:"first_auto,notnull" json:"firstAuto"`
	FirstSemiAuto int `bun:"first_semi_auto,notnull" json:"firstSemiAuto"`
	FirstManual   int `bun:"first_manual,notnull" json:"firstManual"`

	TotalSales int64 `bun:"total_sales,notnull" json:"totalSales"`

	DrawOrder   []int       `bun:"draw_order,type:json" json:"drawOrder,omitempty"`
	Rehearsal   []int       `bun:"rehearsal,type:json" json:"rehearsal,omitempty"`
	BallSet     int         `bun:"ball_set,notnull" json:"ballSet"`
	Orientation Orientation `bun:"orientation,notnull" json:"orientation"`
	Machine     int         `bun:"machine,notnull" json:"machine"`

	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// Primary returns the six primary numbers in stored order.
func (d *Draw) Primary() []int {
	return []int{d.Num1, d.Num2, d.Num3, d.Num4, d.Num5, d.Num6}
}

// SetNumbers assigns the six primary numbers and the bonus.
func (d *Draw) SetNumbers(primary []int, bonus int) {
	for len(primary) < 6 {
		primary = append(primary, 0)
	}
	d.Num1, d.Num2, d.Num3, d.Num4, d.Num5, d.Num6 = primary[0], primary[1], primary[2], primary[3], primary[4], primary[5]
	d.Bonus = bonus
}

// AllNumbers returns the primary numbers followed by the bonus.
func (d *Draw) AllNumbers() []int {
	return append(d.Primary(), d.Bonus)
}

// HasDetail reports whether the community detail block has been filled in.
func (d *Draw) HasDetail() bool {
	return len(d.DrawOrder) == 7
}

// Validate checks the number invariants of a parsed draw.
func (d *Draw) Validate() error {
	if d.DrawNo <= 0 {
		return syncerr.Invalid("draw_no", "must be positive, got %d", d.DrawNo)
	}
	if d.DrawDate == "" {
		return syncerr.Invalid("draw_date", "missing")
	}
	if _, err := time.Parse("2006-01-02", d.DrawDate); err != nil {
		return syncerr.Invalid("draw_date", "%q is not a date", d.DrawDate)
	}

	seen := make(map[int]bool, 6)
	for _, n := range d.Primary() {
		if n < MinBall || n > MaxBall {
			return syncerr.Invalid("numbers", "%d out of range", n)
		}
		if seen[n] {
			return syncerr.Invalid("numbers", "%d repeated", n)
		}
		seen[n] = true
	}
	if d.Bonus < MinBall || d.Bonus > MaxBall {
		return syncerr.Invalid("bonus", "%d out of range", d.Bonus)
	}
	if seen[d.Bonus] {
		return syncerr.Invalid("bonus", "%d repeats a primary number", d.Bonus)
	}
	if len(d.Prizes) != TierCount {
		return syncerr.Invalid("prizes", "want %d tiers, got %d", TierCount, len(d.Prizes))
	}

	if d.HasDetail() && !SameNumbers(d.DrawOrder, d.AllNumbers()) {
		return syncerr.Invalid("draw_order", "not a permutation of the winning numbers")
	}
	return nil
}

// SameNumbers reports whether a and b hold the same multiset of numbers.
func SameNumbers(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int]int, len(a))
	for _, n := range a {
		counts[n]++
	}
	for _, n := range b {
		counts[n]--
		if counts[n] < 0 {
			return false
		}
	}
	return true
}
