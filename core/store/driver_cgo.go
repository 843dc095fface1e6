//go:build cgo_sqlite

package store

import (
	// CGO SQLite driver, selected with -tags cgo_sqlite.
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)
