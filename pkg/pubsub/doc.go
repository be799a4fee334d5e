// Package pubsub is a minimal synchronous-pull client for the pubsub REST
// API: create the subscription at startup, pull batches, acknowledge.
// It works identically against the emulator and the hosted service.
package pubsub
