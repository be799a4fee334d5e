// Package bucket writes dataset descriptors into the blob store over the
// storage REST API. Reads never happen here: objects flow back into the
// catalog through storage notifications handled by the ingest loop.
package bucket
