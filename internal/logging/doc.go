// Package logging configures log/slog for the snag daemon and CLI.
//
// Two handler formats are supported: a compact console format for
// interactive use and JSON for log shipping. Attr helpers keep call
// sites terse and consistent across packages.
package logging
