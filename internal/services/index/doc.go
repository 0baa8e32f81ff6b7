// Package index posts ledger rows to the downstream index service.
//
// The client only speaks HTTP: it reports the status code and body of every
// completed request and wraps failures to reach the service with
// services.ErrTransport. Interpreting status codes is left to the caller.
package index
