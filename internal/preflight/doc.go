// Package preflight provides readiness checks for the filesystem paths and
// engine endpoints babel depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure before it
//     starts accepting connections.
//   - The CLI "babel status" command renders the same results, plus the
//     socket probe, as a table.
//
// Engine checks follow engine.kind: the remote endpoint is only probed when
// the remote engine is selected.
package preflight
