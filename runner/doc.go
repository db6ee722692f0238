// Package runner processes batches of goals read from JSONL files.
//
// Each input line is an object with an "id" and the goal under
// "ori.inputs" (or "prompt"). The Runner builds a fresh engine per item
// through an EngineFactory, runs it to completion and appends the input
// object with an added "result" field to the output file.
//
// # Behaviour
//   - Items run one at a time; engines never share a tree or memory.
//   - A failing item is logged with its id and skipped; the batch goes on.
//   - Items whose goal already appears in the output are skipped, so a
//     crashed batch is resumed by running it again.
//   - An optional done flag file is written when the batch completes.
//   - With RecordsDir set every item also logs to <RecordsDir>/<id>/engine.log.
package runner
