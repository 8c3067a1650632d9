// Package schedule derives schedule state from a project's task tree.
//
// Derived fields (Task.IsDelayed, Task.ChildrenDelayedCount,
// Task.ChildrenTotalDelayedDays and the Project delay counters) are computed
// in memory on every read and are never written back. The only writes made
// here are a project's progress and status (Aggregator.RecomputeProject)
// and a task's schedule fields when a delay is recorded
// (Recorder.RecordDelay).
package schedule
