//go:build sqlite_vec && cgo

package vectorindex

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers vec0 as an auto-loadable extension with mattn/go-sqlite3.
	vec.Auto()
}
