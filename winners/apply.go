package winners

import "github.com/padraicbc/lottosync/models"

// Delta is the counter increment for one retailer.
type Delta struct {
	RetailerID int64
	Tier1      int
	Tier2      int
}

// Mutations are the writes needed to record a scrape.
type Mutations struct {
	Wins   []models.WinRecord
	Stubs  []models.Retailer
	Deltas []Delta
}

func (m Mutations) Empty() bool {
	return len(m.Wins) == 0 && len(m.Stubs) == 0
}

// Apply works out which scraped wins are new, which referenced retailers need
// a stub entry, and how much each retailer's counters grow. Counters only
// move for wins not already recorded, so re-running a scrape is a no-op.
func Apply(scraped []Scraped, existing []models.WinRecord, known map[int64]bool) Mutations {
	var m Mutations

	seen := make(map[models.WinKey]bool, len(existing)+len(scraped))
	for _, w := range existing {
		seen[w.Key()] = true
	}
	stubbed := make(map[int64]bool)
	deltas := make(map[int64]int)

	for _, s := range scraped {
		w := models.WinRecord{DrawNo: s.DrawNo, RetailerID: s.RetailerID, Tier: s.Tier, Origin: s.Origin}
		if seen[w.Key()] {
			continue
		}
		seen[w.Key()] = true
		m.Wins = append(m.Wins, w)

		if !known[s.RetailerID] && !stubbed[s.RetailerID] {
			stubbed[s.RetailerID] = true
			m.Stubs = append(m.Stubs, models.Retailer{
				ID:       s.RetailerID,
				Enabled:  true,
				Name:     s.Name,
				RoadAddr: s.Address,
			})
		}

		i, ok := deltas[s.RetailerID]
		if !ok {
			i = len(m.Deltas)
			deltas[s.RetailerID] = i
			m.Deltas = append(m.Deltas, Delta{RetailerID: s.RetailerID})
		}
		switch s.Tier {
		case 1:
			m.Deltas[i].Tier1++
		case 2:
			m.Deltas[i].Tier2++
		}
	}
	return m
}
