// Package pipeline runs translation jobs. Each job takes one CHM file
// through extraction, text translation and recompilation, and records its
// status, statistics and error. Jobs are independent of each other: a
// failed job never stops or rolls back another one.
package pipeline
