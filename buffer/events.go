package buffer

// Event is delivered to subscribers after buffer state changes.
type Event interface {
	event()
}

// Edited fires after local edits or applied remote operations change text.
// Edits describes the visible-text change since the version before the
// mutation, in ascending order.
type Edited struct {
	Edits []Edit
}

// Dirtied fires when the buffer first diverges from its saved version.
type Dirtied struct{}

// Saved fires after a successful Save.
type Saved struct{}

// Reloaded fires after the buffer text is replaced from its file.
type Reloaded struct{}

func (Edited) event()   {}
func (Dirtied) event()  {}
func (Saved) event()    {}
func (Reloaded) event() {}
