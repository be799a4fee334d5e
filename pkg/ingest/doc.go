// Package ingest runs the pull loop that mirrors blob-store changes into
// the catalog.
//
// Every tick the worker pulls a batch of storage notifications, orders it
// by event time, and applies each message serially. The acknowledgment
// decision is the heart of the loop: applied and permanently unusable
// messages are acked, while messages that failed for reasons that may heal
// (an unknown dataset racing its registration, a database outage) stay
// unacked and come back on redelivery. Object writes, including archival
// rewrites, upsert partitions; object deletes remove partitions, and a
// deleted descriptor removes the whole dataset. The delete notifications
// emitted for overwrites are recognized by their overwrittenByGeneration
// attribute and skipped.
package ingest
