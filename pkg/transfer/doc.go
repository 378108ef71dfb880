// Package transfer holds the transferor matrix: a table from
// (source-kind, destination-kind) to the strategy object that moves
// bytes between a pair of resources. The matrix is populated once at
// startup and consulted both at task-submission time (to reject
// unsupported pairs early) and by the worker pool (to perform the
// transfer itself).
package transfer
