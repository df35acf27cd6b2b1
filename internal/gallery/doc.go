// Package gallery holds the submission and administrator records and the
// services that create them: the Submitter drives a batch of concurrent
// media uploads into one persisted submission and a live broadcast, and the
// Registrar manages administrator credentials.
package gallery
