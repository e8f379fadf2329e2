// Package fanout runs independent research sub-tasks in parallel, one
// isolated runner each, and aggregates their outcomes into a Report.
//
// A batch holds at most MaxSubTasks sub-tasks; larger batches are rejected
// before anything runs. Sub-task runners only ever see tools from a
// tool.LeafRegistry, so a sub-task cannot start another batch.
package fanout
