package queue

import "fmt"

/* Status represents the state of a delivery record
 * Lifecycle: Pending -> Delivered | Abandoned; terminal states are final
 */
type Status int

const (
	Pending Status = iota + 1
	Delivered
	Abandoned
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Delivered:
		return "delivered"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "delivered":
		return Delivered
	case "abandoned":
		return Abandoned
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Abandoned {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsTerminal returns true once no further worker action is taken
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Abandoned
}
