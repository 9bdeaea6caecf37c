// Package expiry classifies inventory items by how close they are to their
// expiry date and turns the result into a reminder message fanned out to
// recipients.
//
// Everything here is pure except Dispatch, which calls the supplied send
// function once per recipient concurrently. Storage, transports and
// triggering live elsewhere (see internal/sweep).
package expiry
