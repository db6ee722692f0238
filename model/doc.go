// Package model defines the provider-agnostic completion interface used by
// every agent, plus decorators that add caching, retries, call budgets and
// call logging around any backend.
//
// Backends (OpenAI, Anthropic) live in sub-packages. A typical stack is
//
//	m := model.Cached(model.Logged(model.Retrying(model.Budgeted(backend, budget), opts), log), store)
//
// so cache hits spend no budget and are not logged as provider calls.
package model
