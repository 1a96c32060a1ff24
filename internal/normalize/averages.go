package normalize

import (
	"math"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// averagedMarkets are the market keys that get derived cross-book averages.
var averagedMarkets = []string{domain.MarketSpreads, domain.MarketTotals, domain.MarketH2H}

// ComputeAverages recomputes the event's derived average-odds fields from its
// current quotes. For each market, the numeric line and price are averaged per
// outcome name across every book that offers the market; points round to the
// nearest 0.5 and prices to the nearest integer. An outcome with zero
// contributing quotes keeps nil averages, never zero.
func ComputeAverages(ev *domain.Event) {
	averages := make(map[string][]domain.AverageOutcome)

	for _, marketKey := range averagedMarkets {
		type acc struct {
			pointSum   float64
			pointCount int
			priceSum   float64
			priceCount int
		}
		sums := make(map[string]*acc)
		var order []string

		for i := range ev.Quotes {
			m := ev.Quotes[i].Market(marketKey)
			if m == nil {
				continue
			}
			for _, o := range m.Outcomes {
				a, ok := sums[o.Name]
				if !ok {
					a = &acc{}
					sums[o.Name] = a
					order = append(order, o.Name)
				}
				if o.Point != nil {
					a.pointSum += *o.Point
					a.pointCount++
				}
				if o.Price != nil {
					a.priceSum += *o.Price
					a.priceCount++
				}
			}
		}

		if len(order) == 0 {
			continue
		}

		outcomes := make([]domain.AverageOutcome, 0, len(order))
		for _, name := range order {
			a := sums[name]
			avg := domain.AverageOutcome{Name: name}
			if a.pointCount > 0 {
				p := roundHalf(a.pointSum / float64(a.pointCount))
				avg.AvgPoint = &p
			}
			if a.priceCount > 0 {
				p := math.Round(a.priceSum / float64(a.priceCount))
				avg.AvgPrice = &p
			}
			outcomes = append(outcomes, avg)
		}
		averages[marketKey] = outcomes
	}

	if len(averages) > 0 {
		ev.Averages = averages
	} else {
		ev.Averages = nil
	}
}

// roundHalf rounds to the nearest 0.5.
func roundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}
