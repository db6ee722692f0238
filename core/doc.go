// Package core provides the foundational domain types shared by every layer of
// hypergen. It defines:
//
//   - TaskType, the closed set of work variants (search, analysis, composition)
//   - NodeKind, distinguishing planning nodes from leaf execution nodes
//   - Status and its silence / suspend / activate categories
//   - Action, the named transitions a node can be asked to perform
//   - SearchResult, the citation record accumulated during a run
//   - ArtifactStore and CallBudget, small contracts used by the engine
//   - Sentinel errors classifying structural, contract and budget failures
//
// It has no behavior beyond parsing and classification and imports no other
// hypergen package.
package core
