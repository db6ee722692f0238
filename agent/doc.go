// Package agent contains the capabilities that carry out the actions of the
// task state machine. The package focuses on three concerns:
//
//  1. The Capability contract and the Proxy that dispatches actions to it
//  2. Model-backed roles: Planner, Executor, SearchAgent, Aggregator, Updater
//  3. Prompt assembly from run memory (dependency results, outline, plan)
//
// Execution model:
//   - The engine builds a Call for the node it selected and asks the Proxy
//     to run the node's pending action
//   - A capability returns an Outcome; it never advances node state itself
//   - Executors may append to the run's article and search results, which
//     are the only memory writes an action performs
//
// Every model call that can return an unusable answer is retried a bounded
// number of times, and every retry after the first bypasses the response
// cache so the same bad answer is not replayed.
package agent
