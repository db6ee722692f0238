// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing task trees, planning nodes and marking them
// finished. They are not intended for production usage.
package testutil
