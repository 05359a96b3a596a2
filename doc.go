// # csvita: A Streaming CSV Reformatter for Go
//
// csvita reads delimiter-separated records, rewrites the quoting of every field, and emits them with a new delimiter. The reader follows RFC 4180 quoting, keeps allocations low for large inputs, and reports precise locations for malformed data.
//
// # Features
//
// - Streaming CSV reader with custom field and quote separators, blank-line skipping, and lazy handling of stray quotes.
// - Column-count enforcement between consecutive records, or a flexible mode that accepts any width.
// - A pure field Policy: always-quote output with doubled or backslash-escaped quotes, optionally leaving empty or integer fields bare.
// - Buffered Writer with an explicit Close that flushes exactly once and refuses further writes.
// - Structured error reporting via `ParseError`, `FieldCountError`, `ErrBareQuote`, `ErrUnterminatedQuote`, and `ErrFieldCount`.
//
// # Getting Started
//
// The command in `cmd/csvita` wires the reader, policy and writer into a file-to-file filter:
//
//	csvita -i in.csv -o out.csv --din ';' --skip-nums
//
// Library users construct a Reader and a Writer directly and copy records between them.
package csvita
