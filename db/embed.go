// Package db holds the SQL migrations compiled into the migrate binary.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
