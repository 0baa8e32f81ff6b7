// Package transmit delivers target-validated ledger rows to the index
// service.
//
// Each pass snapshots the eligible rows before touching any of them, then
// walks the snapshot one row at a time: Pending, POST, and Successful or
// Failed depending on the response. Passes repeat while they make progress.
// Losing the connection to the service aborts the run after returning the
// in-flight row to its prior status.
package transmit
