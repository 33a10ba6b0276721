// Package history persists the lifecycle of translation requests in SQLite.
//
// Each request is recorded when the worker accepts (or rejects) it and then
// moves through running to completed or failed. The CLI reads the table for
// `babel history` and `babel status`. Records are informational only: the
// worker never reads them back to decide what to do.
//
// Schema changes are added as numbered files under migrations/ and applied in
// order on Open.
package history
