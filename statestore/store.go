package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	_ "modernc.org/sqlite"

	"github.com/rollups-dave/node/machine"
)

// Store is the persistent catalog of consensus data, rollup data, and
// machine snapshots for one node instance, backed by a single SQLite
// database in WAL mode plus a snapshots/ directory tree (spec.md §6).
type Store struct {
	db       *sql.DB
	stateDir string
}

const busyTimeout = 10 * time.Second

// Open creates the state directory structure if needed and opens (or
// creates) the SQLite database inside it, in WAL mode with the
// fs_delete_dir scalar function registered.
func Open(stateDir string) (*Store, error) {
	if err := createDirectoryStructure(stateDir); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath(stateDir))
	if err != nil {
		return nil, errors.Wrapf(err, "statestore: open %s", dbPath(stateDir))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "statestore: set busy_timeout")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "statestore: enable WAL mode")
	}

	return &Store{db: db, stateDir: stateDir}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies every pending schema migration, records the genesis
// block number, and — the first time it's called on a fresh database —
// stores initialMachine as the template machine (matching the
// teacher's migrate() entry point).
func (s *Store) Migrate(ctx context.Context, genesisBlockNumber uint64, initialMachine machine.Machine) error {
	if err := migrateToLatest(s.db); err != nil {
		return err
	}
	if err := s.setGenesis(genesisBlockNumber); err != nil {
		return err
	}
	if initialMachine == nil {
		return nil
	}
	hasTemplate, err := s.hasTemplateMachine()
	if err != nil {
		return err
	}
	if hasTemplate {
		return nil
	}
	return s.InsertInitialMachine(ctx, initialMachine)
}

func (s *Store) hasTemplateMachine() (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM template_machine`).Scan(&n); err != nil {
		return false, errors.Wrap(err, "statestore: check template machine")
	}
	return n > 0, nil
}

func (s *Store) setGenesis(blockNumber uint64) error {
	last, err := s.LatestProcessedBlock()
	if err != nil {
		return err
	}
	if blockNumber > last {
		return s.updateLastProcessedBlock(blockNumber)
	}
	return nil
}

func (s *Store) updateLastProcessedBlock(blockNumber uint64) error {
	_, err := s.db.Exec(`UPDATE consensus_state SET last_processed_block = ? WHERE id = 0`, blockNumber)
	if err != nil {
		return errors.Wrap(err, "statestore: update last processed block")
	}
	return nil
}

//
// Directory structure
//

func dbPath(stateDir string) string {
	return filepath.Join(stateDir, "db.sqlite3")
}

// SnapshotsPath returns the directory under stateDir holding every
// machine snapshot.
func SnapshotsPath(stateDir string) string {
	return filepath.Join(stateDir, "snapshots")
}

func createDirectoryStructure(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return errors.Wrapf(err, "statestore: create state dir %s", stateDir)
	}
	if err := os.MkdirAll(SnapshotsPath(stateDir), 0o755); err != nil {
		return errors.Wrapf(err, "statestore: create snapshots dir")
	}
	return nil
}

// snapshotDirFor returns the directory a snapshot with the given state
// hash should live in: content-addressed, so two input sequences that
// reach the same state share the same directory (I3).
func snapshotDirFor(stateDir string, stateHashHex string) string {
	return filepath.Join(SnapshotsPath(stateDir), stateHashHex)
}
