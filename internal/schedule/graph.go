package schedule

import "github.com/evanschultz/critpath/internal/domain"

// Link is one precedence relation between two activities, by arena index.
type Link struct {
	From int
	To   int
	Type domain.RelationType
	Lag  int
}

// Graph stores activities in input order and links as index records.
// Each link is stored once and indexed from both endpoints.
type Graph struct {
	activities []domain.Activity
	links      []Link
	incoming   [][]int
	outgoing   [][]int
	byID       map[string]int
}

func newGraph(activities []domain.Activity) *Graph {
	g := &Graph{
		activities: activities,
		incoming:   make([][]int, len(activities)),
		outgoing:   make([][]int, len(activities)),
		byID:       make(map[string]int, len(activities)),
	}
	for i, a := range activities {
		if _, ok := g.byID[a.ID]; !ok {
			g.byID[a.ID] = i
		}
	}
	return g
}

func (g *Graph) addLink(l Link) {
	idx := len(g.links)
	g.links = append(g.links, l)
	g.outgoing[l.From] = append(g.outgoing[l.From], idx)
	g.incoming[l.To] = append(g.incoming[l.To], idx)
}

// Len returns the number of activities.
func (g *Graph) Len() int {
	return len(g.activities)
}

// Activity returns a pointer into the arena; callers may mutate schedule state.
func (g *Graph) Activity(i int) *domain.Activity {
	return &g.activities[i]
}

// Activities returns a copy of every activity in input order.
func (g *Graph) Activities() []domain.Activity {
	out := make([]domain.Activity, len(g.activities))
	copy(out, g.activities)
	return out
}

// IndexOf resolves an activity id to its arena index.
func (g *Graph) IndexOf(id string) (int, bool) {
	i, ok := g.byID[id]
	return i, ok
}

// Links returns a copy of every link in creation order.
func (g *Graph) Links() []Link {
	out := make([]Link, len(g.links))
	copy(out, g.links)
	return out
}

// Predecessors returns the incoming links of activity i.
func (g *Graph) Predecessors(i int) []Link {
	return g.collect(g.incoming[i])
}

// Successors returns the outgoing links of activity i.
func (g *Graph) Successors(i int) []Link {
	return g.collect(g.outgoing[i])
}

func (g *Graph) collect(idx []int) []Link {
	out := make([]Link, 0, len(idx))
	for _, li := range idx {
		out = append(out, g.links[li])
	}
	return out
}

// ResetToNormal restores every activity to its pristine schedule state.
func (g *Graph) ResetToNormal() {
	for i := range g.activities {
		g.activities[i].ResetToNormal()
	}
}
