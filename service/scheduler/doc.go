// Package scheduler is the single periodic driver. Each tick recovers stale
// locks, triages the inbox and, when no task is active, promotes the oldest
// todo task and hands it to the processor through the dispatch queue. It
// never runs a task itself.
package scheduler
