package validator

// Traversal is the result of walking the graph from the initial state.
type Traversal[S comparable] struct {
	// Order lists reachable states in breadth-first order, initial state first.
	Order []S
	// Unreachable lists top-level states never reached, in table order.
	Unreachable []S
	// Cyclic reports whether any cycle, including a self-loop, is reachable
	// from the initial state.
	Cyclic bool

	reachable map[S]bool
}

// IsReachable reports whether state was reached from the initial state.
func (t *Traversal[S]) IsReachable(state S) bool {
	return t.reachable[state]
}

// Traverse runs a breadth-first search from the initial state over the
// table's edges, then a depth-first pass over the reachable subgraph to
// detect cycles. Destination-only states are reached but never reported
// as unreachable since they are not top-level.
func Traverse[S, E comparable](input Input[S, E]) *Traversal[S] {
	adjacency := make(map[S][]S)
	for _, t := range input.transitions() {
		adjacency[t.From] = append(adjacency[t.From], t.To)
	}

	// seeded with every top-level state unvisited except the initial one
	visited := make(map[S]bool)
	for _, state := range input.topLevelStates() {
		visited[state] = false
	}

	visited[input.Initial] = true

	order := []S{input.Initial}
	queue := []S{input.Initial}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adjacency[current] {
			if visited[next] {
				continue
			}

			visited[next] = true
			order = append(order, next)
			queue = append(queue, next)
		}
	}

	reachable := make(map[S]bool, len(order))
	for _, state := range order {
		reachable[state] = true
	}

	var unreachable []S

	for _, state := range input.topLevelStates() {
		if !reachable[state] {
			unreachable = append(unreachable, state)
		}
	}

	return &Traversal[S]{
		Order:       order,
		Unreachable: unreachable,
		Cyclic:      hasCycle(input.Initial, adjacency),
		reachable:   reachable,
	}
}

type color int

const (
	white color = iota
	gray
	black
)

// hasCycle looks for an edge back to a state still on the current path.
// It is iterative so that long chains cannot exhaust the stack.
func hasCycle[S comparable](start S, adjacency map[S][]S) bool {
	type frame struct {
		state S
		next  int
	}

	colors := map[S]color{start: gray}
	stack := []frame{{state: start}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := adjacency[top.state]

		if top.next == len(edges) {
			colors[top.state] = black
			stack = stack[:len(stack)-1]

			continue
		}

		next := edges[top.next]
		top.next++

		switch colors[next] {
		case gray:
			return true
		case white:
			colors[next] = gray
			stack = append(stack, frame{state: next})
		case black:
		}
	}

	return false
}
