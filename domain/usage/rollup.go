package usage

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailyRollup is one row of the per-day aggregate relation.
// Key: (Date, Environment, ProjectID).
type DailyRollup struct {
	Date         time.Time // UTC midnight
	Environment  Environment
	ProjectID    string
	TotalCostUSD decimal.Decimal
	TotalTokens  int64
	RequestCount int64
}

// ModelRollup is one row of the per-model aggregate relation.
// Key: (Date, Model, Environment, ProjectID).
type ModelRollup struct {
	Date         time.Time
	Model        string
	Environment  Environment
	ProjectID    string
	TotalCostUSD decimal.Decimal
	TotalTokens  int64
	RequestCount int64
}

// EndpointRollup is one row of the per-endpoint aggregate relation.
// Key: (Date, Endpoint, Environment, ProjectID). Token sums are not
// meaningful per endpoint and are not kept.
type EndpointRollup struct {
	Date         time.Time
	Endpoint     string
	Environment  Environment
	ProjectID    string
	TotalCostUSD decimal.Decimal
	RequestCount int64
}

// RollupSet holds the full derived contents of all three aggregate
// relations for one date. Rows are sorted by key, so deriving the same
// events twice yields identical sets.
type RollupSet struct {
	Date     time.Time
	Daily    []DailyRollup
	Model    []ModelRollup
	Endpoint []EndpointRollup
}

// Empty reports whether the set contains no rows at all.
func (s RollupSet) Empty() bool {
	return len(s.Daily) == 0 && len(s.Model) == 0 && len(s.Endpoint) == 0
}

// Rollup derives the aggregate rows for one UTC calendar date from raw
// events. Events outside the date are ignored, as are events without a
// project attribution (pre-provisioning data is never aggregated under an
// empty owner). Cost sums use exact decimal arithmetic.
// This is a PURE function.
func Rollup(events []Event, date time.Time) RollupSet {
	date = DateOf(date)

	type dailyKey struct {
		env     Environment
		project string
	}
	type modelKey struct {
		model   string
		env     Environment
		project string
	}
	type endpointKey struct {
		endpoint string
		env      Environment
		project  string
	}

	daily := make(map[dailyKey]*DailyRollup)
	byModel := make(map[modelKey]*ModelRollup)
	byEndpoint := make(map[endpointKey]*EndpointRollup)

	for _, e := range events {
		if e.ProjectID == "" {
			continue
		}
		if !DateOf(e.Timestamp).Equal(date) {
			continue
		}

		dk := dailyKey{env: e.Environment, project: e.ProjectID}
		d, ok := daily[dk]
		if !ok {
			d = &DailyRollup{Date: date, Environment: e.Environment, ProjectID: e.ProjectID}
			daily[dk] = d
		}
		d.TotalCostUSD = d.TotalCostUSD.Add(e.CostUSD)
		d.TotalTokens += e.TotalTokens
		d.RequestCount++

		mk := modelKey{model: e.Model, env: e.Environment, project: e.ProjectID}
		m, ok := byModel[mk]
		if !ok {
			m = &ModelRollup{Date: date, Model: e.Model, Environment: e.Environment, ProjectID: e.ProjectID}
			byModel[mk] = m
		}
		m.TotalCostUSD = m.TotalCostUSD.Add(e.CostUSD)
		m.TotalTokens += e.TotalTokens
		m.RequestCount++

		ek := endpointKey{endpoint: e.Endpoint, env: e.Environment, project: e.ProjectID}
		ep, ok := byEndpoint[ek]
		if !ok {
			ep = &EndpointRollup{Date: date, Endpoint: e.Endpoint, Environment: e.Environment, ProjectID: e.ProjectID}
			byEndpoint[ek] = ep
		}
		ep.TotalCostUSD = ep.TotalCostUSD.Add(e.CostUSD)
		ep.RequestCount++
	}

	set := RollupSet{Date: date}

	for _, d := range daily {
		set.Daily = append(set.Daily, *d)
	}
	sort.Slice(set.Daily, func(i, j int) bool {
		a, b := set.Daily[i], set.Daily[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		return a.Environment < b.Environment
	})

	for _, m := range byModel {
		set.Model = append(set.Model, *m)
	}
	sort.Slice(set.Model, func(i, j int) bool {
		a, b := set.Model[i], set.Model[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return a.Environment < b.Environment
	})

	for _, ep := range byEndpoint {
		set.Endpoint = append(set.Endpoint, *ep)
	}
	sort.Slice(set.Endpoint, func(i, j int) bool {
		a, b := set.Endpoint[i], set.Endpoint[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		return a.Environment < b.Environment
	})

	return set
}
