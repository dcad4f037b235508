package pool

import "fmt"

// Strategy names a selection algorithm for picking among available entries.
type Strategy string

const (
	// StrategyRoundRobin cycles through available entries in insertion
	// order using a shared cursor.
	StrategyRoundRobin Strategy = "round-robin"

	// StrategyRandom picks uniformly among available entries.
	StrategyRandom Strategy = "random"

	// StrategyLeastConcurrent picks the entry with the fewest in-flight
	// requests, breaking ties by insertion order.
	StrategyLeastConcurrent Strategy = "least-concurrent"

	// StrategyWeightedRandom picks randomly with each entry weighted by
	// its MaxConcurrent (DefaultWeight when unset).
	StrategyWeightedRandom Strategy = "weighted-random"

	// StrategyFallback prefers the first idle entry in insertion order,
	// falling back to the first available entry when none is idle.
	StrategyFallback Strategy = "fallback"
)

// selectEntry picks one entry from avail, which is non-empty and ordered by
// insertion. Caller holds p.mu.
func (p *Pool) selectEntry(s Strategy, avail []*entry) (*entry, error) {
	switch s {
	case StrategyRoundRobin:
		selected := avail[p.cursor%len(avail)]
		p.cursor++
		return selected, nil
	case StrategyRandom:
		return avail[p.rng.Intn(len(avail))], nil
	case StrategyLeastConcurrent:
		selected := avail[0]
		for _, e := range avail[1:] {
			if e.running < selected.running {
				selected = e
			}
		}
		return selected, nil
	case StrategyWeightedRandom:
		total := 0
		for _, e := range avail {
			total += weightOf(e)
		}
		r := p.rng.Intn(total)
		for _, e := range avail {
			r -= weightOf(e)
			if r < 0 {
				return e, nil
			}
		}
		return avail[len(avail)-1], nil
	case StrategyFallback:
		for _, e := range avail {
			if e.running == 0 {
				return e, nil
			}
		}
		return avail[0], nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s)
	}
}

func weightOf(e *entry) int {
	if e.config.MaxConcurrent > 0 {
		return e.config.MaxConcurrent
	}
	return DefaultWeight
}
