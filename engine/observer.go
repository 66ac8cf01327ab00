package engine

// Observer is the engine's host-notification surface: status, sync, and
// fault events are collected into a single interface, injected at
// construction, rather than three mutable function fields. A caller that
// does not care never has to nil-check three fields, and an engine that
// has not been given an Observer still behaves correctly because
// noopObserver is the zero-value default.
type Observer interface {
	// Status reports an informational progress or log line.
	Status(message string)

	// Sync reports that a commit batch has completed successfully.
	Sync()

	// Fault reports a recoverable or unrecoverable fault.
	Fault(message string)
}

// noopObserver implements Observer by discarding every notification.
type noopObserver struct{}

func (noopObserver) Status(string) {}
func (noopObserver) Sync()         {}
func (noopObserver) Fault(string)  {}

// ObserverFuncs adapts three plain functions into an Observer, for callers
// that would rather pass closures than implement the interface. A nil
// field is treated as a no-op.
type ObserverFuncs struct {
	OnStatus func(string)
	OnSync   func()
	OnFault  func(string)
}

func (o ObserverFuncs) Status(message string) {
	if o.OnStatus != nil {
		o.OnStatus(message)
	}
}

func (o ObserverFuncs) Sync() {
	if o.OnSync != nil {
		o.OnSync()
	}
}

func (o ObserverFuncs) Fault(message string) {
	if o.OnFault != nil {
		o.OnFault(message)
	}
}
