// Package errors provides the structured error type shared by every automeet
// package. An AppError carries a machine-readable code, a user-facing message,
// a retryable flag and the HTTP status the server maps it to.
//
// Normal "no capacity yet" and "no cached value" outcomes are never errors;
// they are reported as booleans by the ratelimit and cache packages.
package errors
