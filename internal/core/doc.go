// Package core provides the ingestion, normalization and polling logic for
// the score viewer.
//
// This package is the heart of svr, containing all domain logic independent
// of any UI or transport layer. It can be used by the web scoreboard, the
// terminal viewer, one-shot CLI commands or tests without modification.
//
// # Architecture
//
// The package is organized around a small pipeline:
//
//   - Sources: a [SourceDescriptor] names either a local file or a remote
//     spreadsheet. [Ingestor.Source] turns it into a [RowSource] that yields a
//     raw header row plus raw data rows.
//   - Normalization: [Normalize] hides bookkeeping columns, renames the rest
//     to display names and drops blank rows. Both sources share it.
//   - Polling: [Poller] owns the active source, re-ingests it on gated ticks
//     and publishes each result as a [Snapshot] to subscribers.
//
// # Local files
//
// [LocalReader] sniffs the delimiter from the first line (";" wins over ","),
// parses ragged rows and always treats the first row as the header:
//
//	reader := core.NewLocalReader(core.LocalOptions{})
//	table := reader.Read(ctx, "results.csv")
//
// # Remote spreadsheets
//
// [RemoteFetcher] extracts the spreadsheet ID from a share URL, fetches the
// "<sheet>!A:Z" range through a [ValuesClient] and locates the header row by
// scanning for a first cell equal to "category". When no such row exists the
// first row is used as the header.
//
// # Error Handling
//
// Ingestion never fails loudly. Unreachable sources and invalid references
// degrade to an empty [Table]; malformed rows are skipped. The sentinel errors
// [ErrSourceUnreachable], [ErrMalformedRow] and [ErrInvalidReference] are
// wrapped for logging and mapped to user-facing text by [MapError].
//
// # Concurrency
//
// The poller's control loop only counts ticks and dispatches work. Reads and
// fetches run on a [Pool] so a slow spreadsheet never delays the next tick.
// Overlapping fetches are not ordered: the one that completes last wins.
package core
