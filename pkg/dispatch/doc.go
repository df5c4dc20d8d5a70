// Package dispatch runs mutation logic against tracked state through a
// middleware chain.
//
// A Dispatcher owns one mutation lane: at most one segment of mutation logic
// runs at a time. Mutate runs a function to completion inside one recording
// scope and invokes the middleware once. MutateAsync runs a routine that may
// place checkpoints (Step.Checkpoint) and wait on outside work (Step.Wait,
// Await). Every checkpoint, and the completion of the routine, commits the
// changes made since the previous boundary and delivers them to one
// middleware pass. Waits release the lane without ending the pass.
//
// Calls made with the ctx handed to mutation logic are nested: they borrow the
// caller's lane, record into their own scope and see a CallstackDepth one
// greater than their caller. Nesting is per dispatcher; a call into another
// Dispatcher waits for that dispatcher's own lane. Mutation logic that calls
// its own dispatcher with a context not derived from ctx deadlocks.
//
// CancelAllAsyncOperations tears down every suspended routine. A routine
// paused at a checkpoint never resumes; one inside a wait is torn down when
// the wait returns. Either way the changes accumulated since its last
// checkpoint are delivered to a final pass and its Future fails with a
// *CancelledError.
package dispatch
