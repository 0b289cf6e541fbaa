package converse

import "embed"

// MigrationsFS holds the SQL schema migrations applied at startup.
//
//go:embed migrations
var MigrationsFS embed.FS

// WebFS holds the static browser UI served at the root path.
//
//go:embed web/static
var WebFS embed.FS
