// Package engine implements the scheduler that drives a hypergen task tree
// from a single goal to its final result.
//
// The Engine owns one task.Tree and its memory.Memory and applies exactly one
// node transition per tick. Composition nodes append to the shared article in
// the order they finish, so ticks are never interleaved.
//
// # Tick
//
//   - Discover: breadth first from the root, descending into DOING nodes,
//     pick the first node in an activate state.
//   - Assemble: refresh the memory for the node.
//   - Act: run the action the state machine prescribes through an
//     agent.Proxy; plan actions expand the node's child graph.
//   - Examine: sweep suspended nodes bottom up so changes cascade.
//   - Persist: write nodes.json, tree.json, article.txt and memory.jsonl.
//
// # Termination
//
// Run ends when the root is FINISH (its final aggregate is the result), when
// Stop was called (ResultStopped, core.ErrStopped) or when Config.MaxSteps
// ticks were spent (ResultOutOfSteps, core.ErrOutOfSteps). Each ending writes
// result.txt and the done marker. result.txt holds the raw result and one
// trailing newline, so a multi-line article reads as written; the batch
// runner's JSONL output is the escaped form.
//
// # Usage
//
//	proxy := agent.NewProxy(agent.New(llm))
//	eng := engine.New(task.Info{Goal: goal, TaskType: core.TaskTypeComposition}, proxy,
//	    func(o *engine.Options) {
//	        o.ArtifactStore = artifact.NewDirStore("records")
//	        o.Metrics = engine.NewMetrics(prometheus.DefaultRegisterer)
//	    },
//	)
//	result, err := eng.Run(ctx)
//
// A crashed run continues from its last persisted tick with Resume.
package engine
