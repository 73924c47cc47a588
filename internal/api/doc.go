// Package api contains the HTTP handlers, request/response models and error
// mapping for the lesson service's REST interface.
package api
