//go:build cgo

package db

// go-libsql is cgo-only; register its "libsql" driver when cgo is available.
import _ "github.com/tursodatabase/go-libsql"
