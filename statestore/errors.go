package statestore

import "github.com/cockroachdb/errors"

// ErrInconsistentLastProcessed is returned by InsertConsensusData when
// the supplied last-processed block is behind the one already recorded.
var ErrInconsistentLastProcessed = errors.New("statestore: supplied block is behind last processed")

// ErrInconsistentEpoch is returned when an inserted epoch's number does
// not match the next expected epoch number.
var ErrInconsistentEpoch = errors.New("statestore: supplied epoch is inconsistent with epoch count")

// ErrInconsistentInput is returned when an inserted input does not
// immediately follow the last recorded input (I1).
var ErrInconsistentInput = errors.New("statestore: supplied input does not follow the last recorded input")

// ErrDuplicateEntry is returned when an insert collides with an
// existing, distinct row.
var ErrDuplicateEntry = errors.New("statestore: duplicate entry")

// ErrDataNotFound names the missing-row condition. The read accessors
// in this package do not return it: they report a missing row as a nil
// result with a nil error.
var ErrDataNotFound = errors.New("statestore: data not found")
