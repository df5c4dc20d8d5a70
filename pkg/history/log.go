package history

import (
	"context"
	"errors"
	"sync"

	"changetrack/pkg/dispatch"
	"changetrack/pkg/track"
)

var (
	// ErrNothingToUndo is returned by Undo when the undo stack is empty.
	ErrNothingToUndo = errors.New("history: nothing to undo")
	// ErrNothingToRedo is returned by Redo when the redo stack is empty.
	ErrNothingToRedo = errors.New("history: nothing to redo")
)

// Log is an in-memory commit history with undo and redo stacks. It is safe
// for concurrent use; the containers it undoes into are not locked.
type Log struct {
	mu      sync.Mutex
	batches []track.Batch
	undo    []track.Batch
	redo    []track.Batch
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append records a committed batch. Empty batches are ignored. Appending
// clears the redo stack.
func (l *Log) Append(batch track.Batch) bool {
	if len(batch) == 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, batch)
	l.undo = append(l.undo, batch)
	l.redo = nil
	return true
}

// Batches returns the appended batches in order.
func (l *Log) Batches() []track.Batch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]track.Batch(nil), l.batches...)
}

// Len returns the number of appended batches.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

// CanUndo reports whether Undo has a batch to revert.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

// CanRedo reports whether Redo has a batch to re-apply.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

// Undo reverts the most recent batch not yet undone.
func (l *Log) Undo() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.undo)
	if n == 0 {
		return ErrNothingToUndo
	}
	redo, err := UndoBatch(l.undo[n-1])
	if err != nil {
		return err
	}
	l.undo = l.undo[:n-1]
	l.redo = append(l.redo, redo)
	return nil
}

// Redo re-applies the most recently undone batch.
func (l *Log) Redo() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.redo)
	if n == 0 {
		return ErrNothingToRedo
	}
	undo, err := UndoBatch(l.redo[n-1])
	if err != nil {
		return err
	}
	l.redo = l.redo[:n-1]
	l.undo = append(l.undo, undo)
	return nil
}

// Timeline returns ObjectTimeline over the appended batches.
func (l *Log) Timeline(c any) []TimelineEntry {
	return ObjectTimeline(l.Batches(), c)
}

// Middleware returns dispatcher middleware that appends every non-empty batch
// a pass commits.
func (l *Log) Middleware() dispatch.Middleware {
	return func(ctx context.Context, dc *dispatch.Context, next func()) {
		next()
		for _, batch := range dc.Deltas {
			l.Append(batch)
		}
	}
}
