// Package events defines the dataset change notifications shared between
// replicas.
package events

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpSaved   = "saved"
	OpDeleted = "deleted"
)

// Event announces that a stored dataset changed. Version increases
// monotonically per handle; consumers ignore versions they already applied.
type Event struct {
	Version uint64    `json:"version"`
	Op      string    `json:"op"`
	Handle  string    `json:"handle"`
	Owner   string    `json:"owner"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return fmt.Errorf("version is required")
	}
	switch e.Op {
	case OpSaved, OpDeleted:
	default:
		return fmt.Errorf("op must be saved|deleted")
	}
	if strings.TrimSpace(e.Handle) == "" {
		return fmt.Errorf("handle is required")
	}
	if strings.TrimSpace(e.Owner) == "" {
		return fmt.Errorf("owner is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// New stamps an event with ts as both timestamp and version.
func New(op, owner, handle string, ts time.Time) Event {
	return Event{
		Version: uint64(ts.UnixNano()),
		Op:      op,
		Handle:  handle,
		Owner:   owner,
		TS:      ts.UTC(),
	}
}
