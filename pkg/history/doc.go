// Package history applies committed patches back onto their containers and
// answers timeline queries over a sequence of commit batches.
//
// Undo restores the pre-images recorded in a patch. CreateReversePatch
// captures the current values for the keys a patch touches, so that undoing
// the reverse patch re-applies the original change:
//
//	redo := history.CreateReversePatch(p)
//	_ = history.Undo(p)    // state before the mutation
//	_ = history.Undo(redo) // state after the mutation
package history
