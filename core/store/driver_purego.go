//go:build !cgo_sqlite

package store

import (
	// Pure Go SQLite driver, no CGO required.
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	driverType = "purego"
)
