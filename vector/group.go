package vector

import "github.com/hubenschmidt/go-shelf/core"

// Group identifies vectors that may be compared: same provider, same length.
type Group struct {
	Source string
	Dim    int
}

func GroupOf(e core.Embedding) Group {
	return Group{Source: e.Source, Dim: e.Dim()}
}

// Dominant picks the most frequent group among non-empty embeddings. Ties go
// to the group whose first member appears earliest. It returns the chosen
// group and the vectors belonging to it, in input order.
func Dominant(embs []core.Embedding) (Group, [][]float64) {
	counts := make(map[Group]int)
	order := make([]Group, 0, 2)
	for _, e := range embs {
		if e.IsEmpty() {
			continue
		}
		g := GroupOf(e)
		if _, seen := counts[g]; !seen {
			order = append(order, g)
		}
		counts[g]++
	}
	if len(order) == 0 {
		return Group{}, nil
	}

	best := order[0]
	for _, g := range order[1:] {
		if counts[g] > counts[best] {
			best = g
		}
	}

	members := make([][]float64, 0, counts[best])
	for _, e := range embs {
		if !e.IsEmpty() && GroupOf(e) == best {
			members = append(members, e.Values)
		}
	}
	return best, members
}
