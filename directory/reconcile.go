package directory

import (
	"math"
	"sort"

	"github.com/padraicbc/lottosync/models"
)

// DefaultGeoTolerance is the absolute coordinate difference below which two
// positions are treated as the same.
const DefaultGeoTolerance = 1e-6

// Options tune Reconcile.
type Options struct {
	GeoTolerance float64
	// SentinelID is never disabled.
	SentinelID int64
}

// Change is an existing retailer with new values and the columns that differ.
type Change struct {
	Retailer models.Retailer
	Fields   []string
}

// Plan is the outcome of reconciling a full directory fetch.
type Plan struct {
	Create    []models.Retailer
	Update    []Change
	Disable   []int64
	Unchanged int
}

// Reconcile diffs a complete directory fetch against the stored retailers.
// It never deletes: retailers missing from the fetch are disabled.
func Reconcile(candidates map[int64]Candidate, existing []models.Retailer, opts Options) Plan {
	var plan Plan

	stored := make(map[int64]models.Retailer, len(existing))
	for _, r := range existing {
		stored[r.ID] = r
	}

	for _, id := range sortedIDs(candidates) {
		c := candidates[id]
		cur, ok := stored[id]
		if !ok {
			plan.Create = append(plan.Create, newRetailer(c))
			continue
		}
		next, fields := diff(cur, c, opts.GeoTolerance)
		if len(fields) == 0 {
			plan.Unchanged++
			continue
		}
		plan.Update = append(plan.Update, Change{Retailer: next, Fields: fields})
	}

	for _, r := range existing {
		if _, ok := candidates[r.ID]; ok {
			continue
		}
		if r.ID == opts.SentinelID || !r.Enabled {
			continue
		}
		plan.Disable = append(plan.Disable, r.ID)
	}
	sort.Slice(plan.Disable, func(i, j int) bool { return plan.Disable[i] < plan.Disable[j] })

	return plan
}

func newRetailer(c Candidate) models.Retailer {
	return models.Retailer{
		ID:        c.ID,
		Enabled:   true,
		Name:      c.Name,
		Phone:     c.Phone,
		Addr1:     c.Addr1,
		Addr2:     c.Addr2,
		Addr3:     c.Addr3,
		Addr4:     c.Addr4,
		RoadAddr:  c.RoadAddr,
		Longitude: c.Longitude,
		Latitude:  c.Latitude,
	}
}

func diff(cur models.Retailer, c Candidate, tol float64) (models.Retailer, []string) {
	var fields []string
	next := cur

	text := []struct {
		col      string
		dst      *string
		src, old string
	}{
		{models.ColName, &next.Name, c.Name, cur.Name},
		{models.ColPhone, &next.Phone, c.Phone, cur.Phone},
		{models.ColAddr1, &next.Addr1, c.Addr1, cur.Addr1},
		{models.ColAddr2, &next.Addr2, c.Addr2, cur.Addr2},
		{models.ColAddr3, &next.Addr3, c.Addr3, cur.Addr3},
		{models.ColAddr4, &next.Addr4, c.Addr4, cur.Addr4},
		{models.ColRoadAddr, &next.RoadAddr, c.RoadAddr, cur.RoadAddr},
	}
	for _, f := range text {
		if f.src != f.old {
			*f.dst = f.src
			fields = append(fields, f.col)
		}
	}

	if !sameCoord(cur.Longitude, c.Longitude, tol) {
		next.Longitude = c.Longitude
		fields = append(fields, models.ColLongitude)
	}
	if !sameCoord(cur.Latitude, c.Latitude, tol) {
		next.Latitude = c.Latitude
		fields = append(fields, models.ColLatitude)
	}
	if !cur.Enabled {
		fields = append(fields, models.ColEnabled)
	}

	next.Enabled = true
	return next, fields
}

func sameCoord(a, b, tol float64) bool {
	return a == b || math.Abs(a-b) < tol
}

func sortedIDs(m map[int64]Candidate) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
