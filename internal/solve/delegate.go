package solve

// Delegate decides whether the controller keeps iterating.
//
// Both methods are called synchronously on the controller's goroutine, with
// no timeout, so they must not block for long. Returning false stops the
// loop; that is a deliberate early stop, not a failure.
type Delegate interface {
	BeforeIteration(engine Engine, iteration int, cfg Snapshot) bool
	AfterIteration(engine Engine, iteration int, cfg Snapshot) bool
}

// IterationRecord describes one finished iteration. It is not persisted by
// the controller; observers registered with OnIteration receive a copy.
type IterationRecord struct {
	Iteration int
	Status    Status
	Found     bool
}
