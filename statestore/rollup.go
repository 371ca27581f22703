package statestore

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/rollups-dave/node/commitment"
	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/merkle"
)

// AdvanceAccepted records that machine processed one more input inside
// the given InputID and stores its resulting snapshot and commitment
// leafs, if that state hash has not already been stored (I3: snapshots
// are content-addressed, so identical states share one directory).
func (s *Store) AdvanceAccepted(ctx context.Context, id InputID, m machine.Machine, leafs []commitment.Leaf) error {
	return s.storeSnapshotAndLeafs(ctx, id, m, leafs)
}

// AdvanceReverted records the rollback state after a reverted input:
// the machine's current state and leafs are stored exactly as accepted
// ones are, since the caller has already rewound the machine.
func (s *Store) AdvanceReverted(ctx context.Context, id InputID, m machine.Machine, leafs []commitment.Leaf) error {
	return s.storeSnapshotAndLeafs(ctx, id, m, leafs)
}

func (s *Store) storeSnapshotAndLeafs(ctx context.Context, id InputID, m machine.Machine, leafs []commitment.Leaf) error {
	stateHash, err := m.RootHash(ctx)
	if err != nil {
		return errors.Wrap(err, "statestore: read machine root hash")
	}
	mcycle, err := m.MCycle(ctx)
	if err != nil {
		return errors.Wrap(err, "statestore: read machine cycle")
	}

	dest := snapshotDirFor(s.stateDir, stateHash.Hex())
	exists, err := sqlExistsSnapshot(s.db, stateHash)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.Store(ctx, dest); err != nil {
			return errors.Wrap(err, "statestore: store machine snapshot")
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "statestore: begin advance")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO snapshots (epoch_number, input_index_in_epoch, state_hash, path, mcycle)
		VALUES (?, ?, ?, ?, ?)
	`, id.EpochNumber, id.InputIndexInEpoch, stateHash.Bytes(), dest, mcycle); err != nil {
		return errors.Wrap(err, "statestore: insert snapshot")
	}

	// nil leafs (a snapshot-only call) keep the leafs already recorded for id.
	if leafs != nil {
		if _, err := tx.Exec(`
			DELETE FROM leafs WHERE epoch_number = ? AND input_index_in_epoch = ?
		`, id.EpochNumber, id.InputIndexInEpoch); err != nil {
			return errors.Wrap(err, "statestore: clear stale leafs")
		}
	}
	for seq, l := range leafs {
		if _, err := tx.Exec(`
			INSERT INTO leafs (epoch_number, input_index_in_epoch, seq, hash, repetitions)
			VALUES (?, ?, ?, ?, ?)
		`, id.EpochNumber, id.InputIndexInEpoch, seq, l.Hash.Bytes(), l.Repetitions); err != nil {
			return errors.Wrap(err, "statestore: insert leaf")
		}
	}

	return tx.Commit()
}

func sqlExistsSnapshot(db *sql.DB, stateHash merkle.Digest) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE state_hash = ?`, stateHash.Bytes()).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "statestore: check existing snapshot")
	}
	return n > 0, nil
}

// EpochStateHashes returns the commitment leafs recorded across every
// input of epochNumber, in insertion order.
func (s *Store) EpochStateHashes(epochNumber uint64) ([]commitment.Leaf, error) {
	rows, err := s.db.Query(`
		SELECT l.hash, l.repetitions
		FROM leafs l
		JOIN snapshots sn ON sn.epoch_number = l.epoch_number AND sn.input_index_in_epoch = l.input_index_in_epoch
		WHERE l.epoch_number = ?
		ORDER BY l.input_index_in_epoch ASC, l.seq ASC
	`, epochNumber)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: list epoch state hashes")
	}
	defer rows.Close()

	var out []commitment.Leaf
	for rows.Next() {
		var hashBytes []byte
		var l commitment.Leaf
		if err := rows.Scan(&hashBytes, &l.Repetitions); err != nil {
			return nil, errors.Wrap(err, "statestore: scan leaf")
		}
		h, err := merkle.FromBytes(hashBytes)
		if err != nil {
			return nil, errors.Wrap(err, "statestore: decode leaf hash")
		}
		l.Hash = h
		out = append(out, l)
	}
	return out, rows.Err()
}

// SettlementInfo returns the settlement recorded for epochNumber, or
// (nil, nil) if the epoch has not settled yet (I7: at most one per
// epoch, enforced by the primary key on settlements.epoch_number).
func (s *Store) SettlementInfo(epochNumber uint64) (*Settlement, error) {
	var computationHash, outputMerkle, outputProof []byte
	err := s.db.QueryRow(`
		SELECT computation_hash, output_merkle, output_proof FROM settlements WHERE epoch_number = ?
	`, epochNumber).Scan(&computationHash, &outputMerkle, &outputProof)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "statestore: read settlement")
	}

	ch, err := merkle.FromBytes(computationHash)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: decode computation hash")
	}
	om, err := merkle.FromBytes(outputMerkle)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: decode output merkle root")
	}
	proof, err := merkle.ProofFromFlat(outputProof)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: decode output proof")
	}
	return &Settlement{ComputationHash: ch, OutputMerkle: om, OutputProof: proof}, nil
}

// InsertSettlement records epochNumber's settlement. A second call for
// the same epoch fails on the primary key, enforcing I7.
func (s *Store) InsertSettlement(epochNumber uint64, settlement Settlement) error {
	_, err := s.db.Exec(`
		INSERT INTO settlements (epoch_number, computation_hash, output_merkle, output_proof)
		VALUES (?, ?, ?, ?)
	`, epochNumber, settlement.ComputationHash.Bytes(), settlement.OutputMerkle.Bytes(), settlement.OutputProof.Flat())
	if err != nil {
		return errors.Wrapf(ErrDuplicateEntry, "settlement for epoch %d: %v", epochNumber, err)
	}
	return nil
}

// SnapshotDir returns the directory a snapshot is stored at, or
// ("", false, nil) if no snapshot has been recorded for id.
func (s *Store) SnapshotDir(id InputID) (string, bool, error) {
	var path string
	err := s.db.QueryRow(`
		SELECT path FROM snapshots WHERE epoch_number = ? AND input_index_in_epoch = ?
	`, id.EpochNumber, id.InputIndexInEpoch).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "statestore: read snapshot dir")
	}
	return path, true, nil
}

// LatestSnapshotDir returns the directory of the most recently recorded
// snapshot.
func (s *Store) LatestSnapshotDir() (string, bool, error) {
	var path string
	err := s.db.QueryRow(`
		SELECT path FROM snapshots
		ORDER BY epoch_number DESC, input_index_in_epoch DESC LIMIT 1
	`).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "statestore: read latest snapshot dir")
	}
	return path, true, nil
}

// ClosestSnapshotAtOrBefore returns the directory of the recorded
// snapshot with the greatest mcycle not exceeding mcycle, and that
// snapshot's own mcycle, or (\"\", 0, false, nil) if none exists yet
// (the state dir is empty before the template machine is recorded).
func (s *Store) ClosestSnapshotAtOrBefore(mcycle uint64) (string, uint64, bool, error) {
	var path string
	var found uint64
	err := s.db.QueryRow(`
		SELECT path, mcycle FROM snapshots
		WHERE mcycle <= ?
		ORDER BY mcycle DESC LIMIT 1
	`, mcycle).Scan(&path, &found)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, errors.Wrap(err, "statestore: find closest snapshot at or before mcycle")
	}
	return path, found, true, nil
}

// Leafs returns the cached commitment leafs for one tournament level's
// (log2Stride, log2StrideCount) span rooted at baseCycle, in build
// order, or nil if that span has never been built to completion
// (spec.md §4.3's commitment-leaf cache). Leafs are cached only for
// whole spans, so a build interrupted midway finds nothing here and
// runs again from the start.
func (s *Store) Leafs(level, log2Stride, log2StrideCount, baseCycle uint64) ([]commitment.Leaf, error) {
	rows, err := s.db.Query(`
		SELECT hash, repetitions FROM compute_leafs
		WHERE level = ? AND log2_stride = ? AND log2_stride_count = ? AND base_cycle = ?
		ORDER BY leaf_index ASC
	`, level, log2Stride, log2StrideCount, baseCycle)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: list compute leafs")
	}
	defer rows.Close()

	var out []commitment.Leaf
	for rows.Next() {
		var hashBytes []byte
		var l commitment.Leaf
		if err := rows.Scan(&hashBytes, &l.Repetitions); err != nil {
			return nil, errors.Wrap(err, "statestore: scan compute leaf")
		}
		h, err := merkle.FromBytes(hashBytes)
		if err != nil {
			return nil, errors.Wrap(err, "statestore: decode compute leaf hash")
		}
		l.Hash = h
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertLeafs caches leafs for one tournament level's span rooted at
// baseCycle, so a later Leafs call for the same (level, log2Stride,
// log2StrideCount, baseCycle) resumes from the database instead of
// rerunning the machine.
func (s *Store) InsertLeafs(level, log2Stride, log2StrideCount, baseCycle uint64, leafs []commitment.Leaf) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "statestore: begin insert compute leafs")
	}
	defer tx.Rollback()

	for i, l := range leafs {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO compute_leafs
				(level, log2_stride, log2_stride_count, base_cycle, leaf_index, hash, repetitions)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, level, log2Stride, log2StrideCount, baseCycle, i, l.Hash.Bytes(), l.Repetitions); err != nil {
			return errors.Wrap(err, "statestore: insert compute leaf")
		}
	}
	return tx.Commit()
}

// RollEpoch closes out the current epoch: it records the machine's
// state hash as the boundary snapshot for the new epoch's input 0.
func (s *Store) RollEpoch(ctx context.Context, nextEpoch uint64, m machine.Machine) error {
	return s.storeSnapshotAndLeafs(ctx, InputID{EpochNumber: nextEpoch, InputIndexInEpoch: 0}, m, nil)
}

// InsertInitialMachine records m as epoch 0 input 0's snapshot and
// remembers its state hash as the node's template machine — the state
// every fresh tournament commitment is ultimately measured against.
func (s *Store) InsertInitialMachine(ctx context.Context, m machine.Machine) error {
	if err := s.storeSnapshotAndLeafs(ctx, InputID{}, m, nil); err != nil {
		return err
	}
	stateHash, err := m.RootHash(ctx)
	if err != nil {
		return errors.Wrap(err, "statestore: read machine root hash")
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO template_machine (id, state_hash) VALUES (0, ?)`, stateHash.Bytes())
	if err != nil {
		return errors.Wrap(err, "statestore: insert template machine")
	}
	return nil
}
