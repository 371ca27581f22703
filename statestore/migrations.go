package statestore

import (
	"database/sql"

	"github.com/cockroachdb/errors"
)

// migrations runs in order, each applied at most once, tracked by
// schema_migrations.version. New migrations are appended, never edited
// in place, the way the teacher's own schema evolves.
var migrations = []string{
	// 1: consensus data
	`
	CREATE TABLE consensus_state (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		last_processed_block INTEGER NOT NULL
	);
	INSERT INTO consensus_state (id, last_processed_block) VALUES (0, 0);

	CREATE TABLE inputs (
		epoch_number INTEGER NOT NULL,
		input_index_in_epoch INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (epoch_number, input_index_in_epoch)
	);

	CREATE TABLE epochs (
		epoch_number INTEGER PRIMARY KEY,
		input_index_boundary INTEGER NOT NULL,
		root_tournament TEXT NOT NULL,
		block_created_number INTEGER NOT NULL
	);
	`,
	// 2: rollup data — snapshots, commitment leafs, settlements
	`
	CREATE TABLE snapshots (
		epoch_number INTEGER NOT NULL,
		input_index_in_epoch INTEGER NOT NULL,
		state_hash BLOB NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (epoch_number, input_index_in_epoch)
	);

	CREATE TRIGGER snapshots_delete_dir
	AFTER DELETE ON snapshots
	BEGIN
		SELECT fs_delete_dir(OLD.path);
	END;

	CREATE TABLE leafs (
		epoch_number INTEGER NOT NULL,
		input_index_in_epoch INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		hash BLOB NOT NULL,
		repetitions INTEGER NOT NULL,
		PRIMARY KEY (epoch_number, input_index_in_epoch, seq),
		FOREIGN KEY (epoch_number, input_index_in_epoch)
			REFERENCES snapshots (epoch_number, input_index_in_epoch)
			ON DELETE CASCADE
	);

	CREATE TABLE settlements (
		epoch_number INTEGER PRIMARY KEY,
		computation_hash BLOB NOT NULL,
		output_merkle BLOB NOT NULL,
		output_proof BLOB NOT NULL,
		FOREIGN KEY (epoch_number) REFERENCES epochs (epoch_number)
	);

	CREATE TABLE template_machine (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		state_hash BLOB NOT NULL
	);
	`,
	// 3: per-level commitment leaf cache (spec.md §4.3), and the big-cycle
	// position each snapshot was taken at, so a tournament level commitment
	// can find the closest snapshot at or before its base cycle
	`
	ALTER TABLE snapshots ADD COLUMN mcycle INTEGER NOT NULL DEFAULT 0;

	CREATE TABLE compute_leafs (
		level INTEGER NOT NULL,
		log2_stride INTEGER NOT NULL,
		log2_stride_count INTEGER NOT NULL,
		base_cycle INTEGER NOT NULL,
		leaf_index INTEGER NOT NULL,
		hash BLOB NOT NULL,
		repetitions INTEGER NOT NULL,
		PRIMARY KEY (level, log2_stride, log2_stride_count, base_cycle, leaf_index)
	);
	`,
}

func migrateToLatest(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return errors.Wrap(err, "statestore: create schema_migrations table")
	}

	var applied int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		return errors.Wrap(err, "statestore: count applied migrations")
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(err, "statestore: begin migration transaction")
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "statestore: apply migration %d", i+1)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "statestore: record migration %d", i+1)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "statestore: commit migration %d", i+1)
		}
	}
	return nil
}
