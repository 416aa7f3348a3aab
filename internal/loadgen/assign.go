package loadgen

import (
	"errors"

	"github.com/obulab/obu-bench/internal/client"
)

// Weighted pairs an adapter with its share of the simulated users.
type Weighted struct {
	Adapter client.Adapter
	Weight  int
}

// AssignUsers apportions total users across the weighted adapters and
// interleaves the result so ramp-up mixes protocols instead of
// starting them in blocks. Largest-remainder apportionment keeps the
// counts within one user of the exact proportional share.
func AssignUsers(total int, weighted []Weighted) ([]VirtualUser, error) {
	if total <= 0 {
		return nil, errors.New("loadgen: user count must be positive")
	}
	sum := 0
	for _, w := range weighted {
		if w.Weight < 0 {
			return nil, errors.New("loadgen: negative weight")
		}
		sum += w.Weight
	}
	if sum == 0 {
		return nil, errors.New("loadgen: total weight is zero")
	}

	counts := make([]int, len(weighted))
	remainders := make([]float64, len(weighted))
	assigned := 0
	for i, w := range weighted {
		exact := float64(total) * float64(w.Weight) / float64(sum)
		counts[i] = int(exact)
		remainders[i] = exact - float64(counts[i])
		assigned += counts[i]
	}
	for assigned < total {
		best := 0
		for i := range remainders {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		counts[best]++
		remainders[best] = -1
		assigned++
	}

	// Round-robin interleave across adapters with users remaining.
	users := make([]VirtualUser, 0, total)
	for len(users) < total {
		for i := range weighted {
			if counts[i] > 0 {
				users = append(users, VirtualUser{Adapter: weighted[i].Adapter})
				counts[i]--
			}
		}
	}
	return users, nil
}
