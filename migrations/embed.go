// Package migrations embeds the SQL schema of the audit store in the
// golang-migrate layout: <version>_<title>.up.sql and .down.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
