// Package notify decodes blob-store notifications into their catalog
// meaning.
//
// A notification arrives as a pulled message whose attributes identify the
// event (type, time, bucket, object) and whose base64 body carries the
// object resource as JSON. Classification of the object path decides what
// the ingest loop does with it: the first path component names the dataset,
// a bare "<dataset>" or "<dataset>/dd.json" is the dataset's descriptor,
// and any other remainder is a partition name, slashes included.
package notify
