// Package client wraps the catalog HTTP API for the CLI commands.
package client
