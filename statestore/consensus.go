package statestore

import (
	"database/sql"

	"github.com/cockroachdb/errors"
)

// LatestProcessedBlock returns the highest L1 block number this node
// has ingested consensus data up to.
func (s *Store) LatestProcessedBlock() (uint64, error) {
	var block uint64
	err := s.db.QueryRow(`SELECT last_processed_block FROM consensus_state WHERE id = 0`).Scan(&block)
	if err != nil {
		return 0, errors.Wrap(err, "statestore: read last processed block")
	}
	return block, nil
}

// LastInput returns the InputID of the most recently recorded input,
// or (nil, nil) if no input has been recorded yet.
func (s *Store) LastInput() (*InputID, error) {
	var id InputID
	err := s.db.QueryRow(`
		SELECT epoch_number, input_index_in_epoch FROM inputs
		ORDER BY epoch_number DESC, input_index_in_epoch DESC LIMIT 1
	`).Scan(&id.EpochNumber, &id.InputIndexInEpoch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "statestore: read last input")
	}
	return &id, nil
}

// InputCount returns the number of inputs recorded for epochNumber.
func (s *Store) InputCount(epochNumber uint64) (uint64, error) {
	var count uint64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM inputs WHERE epoch_number = ?`, epochNumber).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "statestore: count inputs")
	}
	return count, nil
}

// Input returns the raw payload recorded at id, or (nil, nil) if absent.
func (s *Store) Input(id InputID) (*Input, error) {
	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM inputs WHERE epoch_number = ? AND input_index_in_epoch = ?
	`, id.EpochNumber, id.InputIndexInEpoch).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "statestore: read input")
	}
	return &Input{ID: id, Data: data}, nil
}

// Inputs returns every input payload for epochNumber, in order.
func (s *Store) Inputs(epochNumber uint64) ([][]byte, error) {
	rows, err := s.db.Query(`
		SELECT data FROM inputs WHERE epoch_number = ? ORDER BY input_index_in_epoch ASC
	`, epochNumber)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: list inputs")
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "statestore: scan input")
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

// EpochCount returns the number of epochs recorded.
func (s *Store) EpochCount() (uint64, error) {
	var count uint64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM epochs`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "statestore: count epochs")
	}
	return count, nil
}

// Epoch returns the epoch at epochNumber, or (nil, nil) if absent.
func (s *Store) Epoch(epochNumber uint64) (*Epoch, error) {
	e := Epoch{EpochNumber: epochNumber}
	err := s.db.QueryRow(`
		SELECT input_index_boundary, root_tournament, block_created_number
		FROM epochs WHERE epoch_number = ?
	`, epochNumber).Scan(&e.InputIndexBoundary, &e.RootTournament, &e.BlockCreatedNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "statestore: read epoch")
	}
	return &e, nil
}

// LastSealedEpoch returns the highest-numbered epoch recorded, or
// (nil, nil) if none exist (I7: at most one settlement per epoch, but
// any number of epochs may exist unsettled).
func (s *Store) LastSealedEpoch() (*Epoch, error) {
	var epochNumber uint64
	err := s.db.QueryRow(`SELECT epoch_number FROM epochs ORDER BY epoch_number DESC LIMIT 1`).Scan(&epochNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "statestore: read last sealed epoch")
	}
	return s.Epoch(epochNumber)
}

// InsertConsensusData atomically records a batch of newly ingested
// inputs and epochs together with the L1 block they were read up to
// (I1: inputs must be contiguous; I2: lastProcessedBlock only advances).
func (s *Store) InsertConsensusData(lastProcessedBlock uint64, inputs []Input, epochs []Epoch) error {
	current, err := s.LatestProcessedBlock()
	if err != nil {
		return err
	}
	if lastProcessedBlock < current {
		return errors.Wrapf(ErrInconsistentLastProcessed, "got %d, have %d", lastProcessedBlock, current)
	}

	last, err := s.LastInput()
	if err != nil {
		return err
	}
	nextEpoch, err := s.EpochCount()
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "statestore: begin insert consensus data")
	}
	defer tx.Rollback()

	for _, in := range inputs {
		if last != nil && !last.ValidateNext(in.ID) {
			return errors.Wrapf(ErrInconsistentInput, "previous %+v, got %+v", *last, in.ID)
		}
		if last == nil && !(in.ID.EpochNumber == 0 && in.ID.InputIndexInEpoch == 0) {
			return errors.Wrapf(ErrInconsistentInput, "first input must be epoch 0 index 0, got %+v", in.ID)
		}
		if _, err := tx.Exec(`
			INSERT INTO inputs (epoch_number, input_index_in_epoch, data) VALUES (?, ?, ?)
		`, in.ID.EpochNumber, in.ID.InputIndexInEpoch, in.Data); err != nil {
			return errors.Wrap(err, "statestore: insert input")
		}
		id := in.ID
		last = &id
	}

	for _, e := range epochs {
		if e.EpochNumber != nextEpoch {
			return errors.Wrapf(ErrInconsistentEpoch, "expected epoch %d, got %d", nextEpoch, e.EpochNumber)
		}
		nextEpoch++
		if _, err := tx.Exec(`
			INSERT INTO epochs (epoch_number, input_index_boundary, root_tournament, block_created_number)
			VALUES (?, ?, ?, ?)
		`, e.EpochNumber, e.InputIndexBoundary, e.RootTournament, e.BlockCreatedNumber); err != nil {
			return errors.Wrap(err, "statestore: insert epoch")
		}
	}

	if _, err := tx.Exec(`UPDATE consensus_state SET last_processed_block = ? WHERE id = 0`, lastProcessedBlock); err != nil {
		return errors.Wrap(err, "statestore: update last processed block")
	}

	return tx.Commit()
}
