package statestore

import (
	"database/sql/driver"
	"fmt"
	"os"

	"modernc.org/sqlite"
)

// fs_delete_dir is a scalar SQL function that removes a snapshot
// directory from disk. It backs the ON DELETE CASCADE triggers on the
// snapshots table so deleting a catalog row always removes its
// directory too — the filesystem never diverges from the catalog
// (spec: "partial snapshot write").
func init() {
	if err := sqlite.RegisterScalarFunction("fs_delete_dir", 1, fsDeleteDir); err != nil {
		panic(fmt.Sprintf("statestore: register fs_delete_dir: %v", err))
	}
}

func fsDeleteDir(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	path, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("fs_delete_dir: expected a text argument, got %T", args[0])
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("fs_delete_dir: %w", err)
	}
	return nil, nil
}
