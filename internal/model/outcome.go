package model

import "fmt"

// Outcome is the terminal result written by Finalize. Values are only built
// through Done, Duplicate and Failed; the zero Outcome is rejected.
type Outcome struct {
	status  Status
	entryID string
	message string
}

// Done marks freshly indexed content.
func Done(entryID string) Outcome {
	return Outcome{status: StatusDone, entryID: entryID}
}

// Duplicate marks content that already had an index entry.
func Duplicate(entryID string) Outcome {
	return Outcome{status: StatusDuplicate, entryID: entryID}
}

// Failed marks a run that ended in error.
func Failed(message string) Outcome {
	if message == "" {
		message = "unknown error"
	}
	return Outcome{status: StatusError, message: message}
}

func (o Outcome) Status() Status  { return o.status }
func (o Outcome) EntryID() string { return o.entryID }
func (o Outcome) Message() string { return o.message }

// Validate rejects outcomes that would leave a record in an illegal state.
func (o Outcome) Validate() error {
	switch o.status {
	case StatusDone, StatusDuplicate:
		if o.entryID == "" {
			return fmt.Errorf("%w: %s without index entry", ErrInvalidOutcome, o.status)
		}
	case StatusError:
		if o.message == "" {
			return fmt.Errorf("%w: error without message", ErrInvalidOutcome)
		}
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidOutcome, o.status)
	}
	return nil
}
