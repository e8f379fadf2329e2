// Package runner drives a single research conversation through a bounded
// number of tool-calling turns.
//
// A Runner sends the conversation to a model.Model, executes the requested
// tools one after another in request order, feeds their output back and
// repeats until one of four terminal outcomes is reached:
//
//	completed    the model answered without requesting tools
//	submitted    a tool output carried a final-result marker with a JSON object
//	synthesized  the turn budget ran out and a tool-free summary call succeeded
//	failed       the model call failed or the tool protocol was violated
//
// Every run writes its trajectory and a run summary to the session store
// exactly once, after the outcome is known.
package runner
