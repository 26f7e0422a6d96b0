package level

// Status is the lifecycle state of a store.
type Status int

const (
	// StatusOpening is the state of a new store and of a store being
	// opened. Operations issued now are deferred until the open completes.
	StatusOpening Status = iota
	StatusOpen
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpening:
		return "opening"
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}
