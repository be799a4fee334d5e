// Package gcp provides the authenticated HTTP client shared by the pubsub
// and bucket packages. Credentials come from application default
// credentials in deployed runs and from an injected static token source
// against emulators and in tests.
package gcp
