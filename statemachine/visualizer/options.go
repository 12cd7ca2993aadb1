package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowGuards marks guarded edges with [guarded]
	ShowGuards bool

	// ShowActions lists state actions as notes and transition actions on edges
	ShowActions bool

	// HighlightCurrent styles the machine's current state, when the source exposes one
	HighlightCurrent bool

	// Direction controls diagram flow: "TB" (top-bottom) or "LR" (left-right)
	Direction string

	// HighlightPath highlights specific states
	HighlightPath []string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowGuards:       true,
		ShowActions:      true,
		HighlightCurrent: true,
		Direction:        "TB",
	}
}

// WithShowGuards enables/disables guard markers.
func (o Options) WithShowGuards(show bool) Options {
	o.ShowGuards = show

	return o
}

// WithShowActions enables/disables action details.
func (o Options) WithShowActions(show bool) Options {
	o.ShowActions = show

	return o
}

// WithHighlightCurrent enables/disables current state styling.
func (o Options) WithHighlightCurrent(highlight bool) Options {
	o.HighlightCurrent = highlight

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}
