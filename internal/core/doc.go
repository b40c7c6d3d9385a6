// Package core provides the import and code-generation logic for dialcodes.
//
// The package has no UI dependencies. The web server, the terminal review UI
// and the CLI all drive it through [Service].
//
// # Pipeline
//
// Text copied from a spreadsheet is split into entries by [Parse], which
// accepts tabs or runs of two or more spaces between columns and reports
// malformed lines as [ParseError] values. [Service.Import] appends the valid
// entries to the [RecordStore] in a single write.
//
// For a chosen [Record] and [PayloadMode], [BuildPayload] produces the exact
// string encoded in the code: a tel: URI for direct dialing, or a link to the
// /call confirmation page. A [Renderer] turns the payload into a [Raster]
// which [EncodePNG] writes as a PNG named by [ExportFileName].
//
// # Review
//
// A [Review] walks an ordered working set with a [Cursor]. Each move or mode
// change requests a render from its [RenderSlot], which applies only the
// latest completion, so a slow render never replaces a newer one.
//
// # Persistence
//
// [RecordStore] keeps the set in memory and writes it as one JSON array under
// a single key of a [KV] backend on every change. Subscribers receive a
// [Change] after each commit.
//
// # Error Handling
//
// Technical errors are mapped to messages with support codes by [MapError]:
//
//   - IMP001-IMP004: Import errors (empty input, no valid rows, file size)
//   - EXP001-EXP003: Export errors (pending or failed render)
//   - REV001-REV002: Review errors (expired session, nothing to review)
//   - STO001-STO004: Store errors (missing record, load and save failures)
//   - RND001-RND002: Render errors
//   - RATE001: Too many requests or renders
//   - REQ001-REQ002: Cancelled or timed-out requests
package core
