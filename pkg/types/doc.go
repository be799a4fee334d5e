// Package types holds the domain model shared by every package: managers,
// datasets, partitions, their enums, and the error taxonomy.
package types
