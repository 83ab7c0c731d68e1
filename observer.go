package imagine

// Source tells where a resolved call's result came from.
type Source string

const (
	// SourceOverride marks results supplied by a matching scene.
	SourceOverride Source = "override"
	// SourceOriginal marks results computed by the wrapped body.
	SourceOriginal Source = "original"
)

// CallEvent describes one resolved invocation of a wrapped callable.
type CallEvent struct {
	Fn        string
	Point     Point
	Value     Value // nil when Err is set
	Err       error
	Source    Source
	SceneHash string // identity of the matching scene, "" for original
	Depth     int    // open activations at call time
}

// ScopeEvent describes an activation entering or exiting on one target.
type ScopeEvent struct {
	Fn        string
	SceneHash string // head installed (enter) or released (exit)
	Depth     int    // open activations after the transition
}

// Observer receives engine activity. The engine itself stores nothing;
// journaling and tracing hang off this interface. Implementations must not
// call back into the Fn they observe.
type Observer interface {
	Call(ev CallEvent)
	Enter(ev ScopeEvent)
	Exit(ev ScopeEvent)
}

// NopObserver discards everything. Embed it to implement only the hooks a
// recorder cares about.
type NopObserver struct{}

func (NopObserver) Call(CallEvent)   {}
func (NopObserver) Enter(ScopeEvent) {}
func (NopObserver) Exit(ScopeEvent)  {}
