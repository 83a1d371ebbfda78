// Package processor runs promoted tasks. A single worker consumes dispatches
// published by the scheduler, drives the investigation pipeline and commits
// the terminal transition. Intermediate phases are checkpointed for crash
// recovery only and never reported.
package processor
