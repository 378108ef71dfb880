// Package task is the task manager and worker pool of spec.md §4.5: it
// allocates task ids, holds the single source of truth for task
// status, and drives a fixed-size pool of workers pulling from one
// FIFO queue. Callers submit already-resolved resources; Manager does
// not resolve descriptors or talk to the job registry or the wire
// protocol. Its only registry use is taking and releasing references
// on the backends a task names.
package task
