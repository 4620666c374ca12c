// Package server implements the HTTP server and HTTP handlers for
// filedesk. It wires the chi route table, the middleware chain (request
// ids, structured logging, metrics, panic recovery, security headers) and
// the handlers that translate requests into files.Service calls.
package server
