// Package server implements the HTTP boundary of the gallery backend. It
// wires the chi routes, the middleware chain and the JSON error mapping, and
// provides lifecycle helpers used by tests and the production binary.
package server
