// Package scheduler triggers named jobs on cron or interval schedules.
//
// It only decides when to run; the job itself (a sweep) owns its own
// timeouts, locking and reporting. Overlapping runs of the same job are
// skipped and panics are recovered.
package scheduler
