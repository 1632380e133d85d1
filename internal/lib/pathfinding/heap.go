package pathfinding

// openItem is an entry in the A* open set. Entries are never updated in
// place; a cheaper route to a node pushes a new entry and the old one is
// skipped when popped.
type openItem struct {
	node int
	g    float64
	f    float64
	seq  uint64
}

// openSet orders entries by f, breaking ties by insertion order
type openSet []openItem

func (h openSet) Len() int { return len(h) }

func (h openSet) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}

func (h openSet) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *openSet) Push(x any) {
	*h = append(*h, x.(openItem))
}

func (h *openSet) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
