package stream

// Aggregator folds delta events into a single growing assistant message.
// Observers always receive the full accumulated text, never a diff, so a
// consumer can replace its view in place on every update.
type Aggregator struct {
	content  string
	started  bool
	onUpdate func(full string)
}

// NewAggregator builds an aggregator; onUpdate may be nil.
func NewAggregator(onUpdate func(full string)) *Aggregator {
	return &Aggregator{onUpdate: onUpdate}
}

// Append adds one delta and notifies the observer with the accumulated text.
func (a *Aggregator) Append(delta string) {
	if delta == "" {
		return
	}
	a.content += delta
	a.started = true
	if a.onUpdate != nil {
		a.onUpdate(a.content)
	}
}

// Content returns the accumulated assistant text.
func (a *Aggregator) Content() string { return a.content }

// Started reports whether at least one delta arrived. When false, no
// assistant message should be created for the cycle.
func (a *Aggregator) Started() bool { return a.started }
