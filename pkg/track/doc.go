// Package track records reversible patches for mutations made through
// tracking views.
//
// A Session owns the identity Registry (raw container to view, one to one) and
// a stack of recording Scopes. A view write looks up the innermost active
// scope, snapshots the pre-image of the touched key the first time that key is
// written in the scope, and then mutates the underlying container. Committing
// a scope yields a Batch: one Patch per touched container, in first-touch
// order.
//
//	sess := track.NewSession(nil)
//	batch, err := track.RecordPatches(sess, state, func(v track.View) error {
//		v.(*track.RecordView).Set("name", "new")
//		return nil
//	})
//
// Writes made while no scope is active pass straight through and are not
// recorded.
package track
