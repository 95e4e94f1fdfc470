// Package roster turns an uploaded student spreadsheet into a batch of
// student-creation requests.
//
// It is independent of any transport and is used by the web handlers and
// the rosterctl CLI alike.
//
// # Pipeline
//
//  1. [ParseFile] decodes a .csv, .xls or .xlsx file into raw rows keyed by
//     header text.
//  2. [Normalizer] maps each raw row onto a [Row]: header aliases are
//     matched case-insensitively, registration numbers are split into
//     year, course, location and intake tokens, two-digit years are
//     expanded, and free-text campus and course are resolved against the
//     backend's reference data through [Indices].
//  3. [FindDuplicates] flags rows sharing a registration number or an
//     email (case-insensitive).
//  4. A [Session] holds the rows while the user reviews them. It supports a
//     single active edit, row deletion and a duplicates-only view.
//  5. [PrepareBatch] and [SendBatch] build payloads for eligible rows, send
//     them in one request and merge the backend's per-row details into the
//     failure report.
//
// # Reference Data
//
// Campus keys are built from the normalized name, code and location of
// each campus; a later campus overwrites an earlier one on a collision.
// Course keys combine the normalized course code with the campus ID; the
// first course wins. Indices are memoized per reference version by
// [IndexCache].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes
// by [MapError]:
//
//   - FILE001-FILE005: upload and decoding problems
//   - ROW001-ROW003: row lookup and editing
//   - SUB001-SUB004: batch submission
//   - SES001-SES003: sessions, cancellation and timeouts
//   - REF001: reference data
//   - HIS001-HIS002: submission history
//   - RATE001-RATE002: throttling
package roster
