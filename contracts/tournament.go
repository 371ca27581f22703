package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MatchID identifies a match by the two commitment hashes in dispute,
// matching the teacher's Match.Id struct field order.
type MatchID struct {
	CommitmentOne [32]byte
	CommitmentTwo [32]byte
}

const tournamentABI = `[
	{"inputs":[
		{"internalType":"bytes32","name":"finalState","type":"bytes32"},
		{"internalType":"bytes32[]","name":"proof","type":"bytes32[]"},
		{"internalType":"bytes32","name":"leftChild","type":"bytes32"},
		{"internalType":"bytes32","name":"rightChild","type":"bytes32"}
	],"name":"joinTournament","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"},
		{"internalType":"bytes32","name":"leftNode","type":"bytes32"},
		{"internalType":"bytes32","name":"rightNode","type":"bytes32"},
		{"internalType":"bytes32","name":"newLeftNode","type":"bytes32"},
		{"internalType":"bytes32","name":"newRightNode","type":"bytes32"}
	],"name":"advanceMatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"},
		{"internalType":"bytes32","name":"leftLeaf","type":"bytes32"},
		{"internalType":"bytes32","name":"rightLeaf","type":"bytes32"},
		{"internalType":"bytes32","name":"initialHash","type":"bytes32"},
		{"internalType":"bytes32[]","name":"initialHashProof","type":"bytes32[]"}
	],"name":"sealInnerMatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"},
		{"internalType":"bytes32","name":"leftLeaf","type":"bytes32"},
		{"internalType":"bytes32","name":"rightLeaf","type":"bytes32"},
		{"internalType":"bytes32","name":"initialHash","type":"bytes32"},
		{"internalType":"bytes32[]","name":"initialHashProof","type":"bytes32[]"},
		{"internalType":"bytes","name":"accessLog","type":"bytes"}
	],"name":"sealLeafMatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"},
		{"internalType":"address","name":"childTournament","type":"address"}
	],"name":"winInnerMatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"},
		{"internalType":"bytes","name":"proof","type":"bytes"}
	],"name":"winLeafMatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"}
	],"name":"eliminateMatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"childTournament","type":"address"}],
	 "name":"eliminateInnerTournament","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"commitmentHash","type":"bytes32"}],
	 "name":"getCommitment","outputs":[
		{"internalType":"uint64","name":"allowance","type":"uint64"},
		{"internalType":"uint64","name":"startInstant","type":"uint64"},
		{"internalType":"bytes32","name":"finalState","type":"bytes32"},
		{"internalType":"bool","name":"hasOpenMatch","type":"bool"},
		{"internalType":"bytes32","name":"otherParent","type":"bytes32"}
	],"stateMutability":"view","type":"function"},
	{"inputs":[
		{"components":[{"internalType":"bytes32","name":"commitmentOne","type":"bytes32"},{"internalType":"bytes32","name":"commitmentTwo","type":"bytes32"}],"internalType":"struct Match.Id","name":"matchId","type":"tuple"}
	],"name":"getMatch","outputs":[
		{"internalType":"bytes32","name":"otherParent","type":"bytes32"},
		{"internalType":"bytes32","name":"leftNode","type":"bytes32"},
		{"internalType":"bytes32","name":"rightNode","type":"bytes32"},
		{"internalType":"uint256","name":"runningLeafPosition","type":"uint256"},
		{"internalType":"uint64","name":"currentHeight","type":"uint64"},
		{"internalType":"uint256","name":"leafCycle","type":"uint256"}
	],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"tournamentLevelConstants","outputs":[
		{"internalType":"uint64","name":"level","type":"uint64"},
		{"internalType":"uint64","name":"log2step","type":"uint64"},
		{"internalType":"uint64","name":"height","type":"uint64"}
	],"stateMutability":"pure","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"bytes32","name":"parent","type":"bytes32"},
		{"indexed":false,"internalType":"bytes32","name":"left","type":"bytes32"},
		{"indexed":false,"internalType":"bytes32","name":"right","type":"bytes32"}
	],"name":"matchCreated","type":"event"}
]`

// Commitment mirrors the teacher's CommitmentState shape: a clock plus
// the final state this commitment claims and its open match, if any.
type Commitment struct {
	Allowance    uint64
	StartInstant uint64
	FinalState   [32]byte
	HasOpenMatch bool
	OtherParent  [32]byte
}

// LevelConstants reports the fixed stride parameters of one tournament
// level: its commitment-tree height and log2 stride between leaves.
type LevelConstants struct {
	Level    uint64
	Log2Step uint64
	Height   uint64
}

// Match mirrors the teacher's MatchState(bytes32,bytes32,bytes32,uint256,uint64,uint256)
// view return: the position of the match's running bisection, derived
// and stored entirely on-chain rather than reconstructed off-chain
// from event history.
type Match struct {
	OtherParent         [32]byte
	LeftNode            [32]byte
	RightNode           [32]byte
	RunningLeafPosition *big.Int
	CurrentHeight       uint64
	LeafCycle           *big.Int
}

// MatchCreated is the decoded form of a tournament's matchCreated log,
// used to discover new matches opened against this node's commitment.
type MatchCreated struct {
	Parent, Left, Right [32]byte
	Raw                 types.Log
}

// TournamentCaller binds the read and write surface shared by root,
// inner, and leaf tournaments: the contracts differ in their sealing
// and winning calldata shape but share everything else, so one binding
// covers all three (the teacher's leaftournament/nonleaftournament
// split is an on-chain gas optimization this client does not need to
// mirror).
type TournamentCaller struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

func NewTournamentCaller(address common.Address, backend bind.ContractBackend) (*TournamentCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(tournamentABI))
	if err != nil {
		return nil, errors.Wrap(err, "contracts: parse tournament ABI")
	}
	return &TournamentCaller{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (t *TournamentCaller) Address() common.Address { return t.address }

func (t *TournamentCaller) GetCommitment(ctx context.Context, commitmentHash [32]byte) (Commitment, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getCommitment", commitmentHash); err != nil {
		return Commitment{}, errors.Wrap(err, "contracts: call getCommitment")
	}
	return Commitment{
		Allowance:    *abi.ConvertType(out[0], new(uint64)).(*uint64),
		StartInstant: *abi.ConvertType(out[1], new(uint64)).(*uint64),
		FinalState:   *abi.ConvertType(out[2], new([32]byte)).(*[32]byte),
		HasOpenMatch: *abi.ConvertType(out[3], new(bool)).(*bool),
		OtherParent:  *abi.ConvertType(out[4], new([32]byte)).(*[32]byte),
	}, nil
}

func (t *TournamentCaller) GetMatch(ctx context.Context, id MatchID) (Match, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getMatch", id); err != nil {
		return Match{}, errors.Wrap(err, "contracts: call getMatch")
	}
	return Match{
		OtherParent:         *abi.ConvertType(out[0], new([32]byte)).(*[32]byte),
		LeftNode:            *abi.ConvertType(out[1], new([32]byte)).(*[32]byte),
		RightNode:           *abi.ConvertType(out[2], new([32]byte)).(*[32]byte),
		RunningLeafPosition: abi.ConvertType(out[3], new(big.Int)).(*big.Int),
		CurrentHeight:       *abi.ConvertType(out[4], new(uint64)).(*uint64),
		LeafCycle:           abi.ConvertType(out[5], new(big.Int)).(*big.Int),
	}, nil
}

func (t *TournamentCaller) LevelConstants(ctx context.Context) (LevelConstants, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tournamentLevelConstants"); err != nil {
		return LevelConstants{}, errors.Wrap(err, "contracts: call tournamentLevelConstants")
	}
	return LevelConstants{
		Level:    *abi.ConvertType(out[0], new(uint64)).(*uint64),
		Log2Step: *abi.ConvertType(out[1], new(uint64)).(*uint64),
		Height:   *abi.ConvertType(out[2], new(uint64)).(*uint64),
	}, nil
}

func (t *TournamentCaller) JoinTournament(opts *bind.TransactOpts, finalState [32]byte, proof [][32]byte, left, right [32]byte) (*types.Transaction, error) {
	return t.send(opts, "joinTournament", finalState, proof, left, right)
}

func (t *TournamentCaller) AdvanceMatch(opts *bind.TransactOpts, id MatchID, left, right, newLeft, newRight [32]byte) (*types.Transaction, error) {
	return t.send(opts, "advanceMatch", id, left, right, newLeft, newRight)
}

func (t *TournamentCaller) SealInnerMatch(opts *bind.TransactOpts, id MatchID, leftLeaf, rightLeaf, initialHash [32]byte, proof [][32]byte) (*types.Transaction, error) {
	return t.send(opts, "sealInnerMatch", id, leftLeaf, rightLeaf, initialHash, proof)
}

func (t *TournamentCaller) SealLeafMatch(opts *bind.TransactOpts, id MatchID, leftLeaf, rightLeaf, initialHash [32]byte, proof [][32]byte, accessLog []byte) (*types.Transaction, error) {
	return t.send(opts, "sealLeafMatch", id, leftLeaf, rightLeaf, initialHash, proof, accessLog)
}

func (t *TournamentCaller) WinInnerMatch(opts *bind.TransactOpts, id MatchID, childTournament common.Address) (*types.Transaction, error) {
	return t.send(opts, "winInnerMatch", id, childTournament)
}

func (t *TournamentCaller) WinLeafMatch(opts *bind.TransactOpts, id MatchID, proof []byte) (*types.Transaction, error) {
	return t.send(opts, "winLeafMatch", id, proof)
}

func (t *TournamentCaller) EliminateMatch(opts *bind.TransactOpts, id MatchID) (*types.Transaction, error) {
	return t.send(opts, "eliminateMatch", id)
}

func (t *TournamentCaller) EliminateInnerTournament(opts *bind.TransactOpts, childTournament common.Address) (*types.Transaction, error) {
	return t.send(opts, "eliminateInnerTournament", childTournament)
}

func (t *TournamentCaller) send(opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	tx, err := t.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "contracts: send %s", method)
	}
	return tx, nil
}

// FilterMatchCreated returns every matchCreated event emitted by this
// tournament in [from, to].
func (t *TournamentCaller) FilterMatchCreated(ctx context.Context, filter ethereum.LogFilterer, from, to uint64) ([]MatchCreated, error) {
	topic0 := t.abi.Events["matchCreated"].ID
	logs, err := filter.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{t.address},
		Topics:    [][]common.Hash{{topic0}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]MatchCreated, 0, len(logs))
	for _, lg := range logs {
		var decoded MatchCreated
		if err := t.abi.UnpackIntoInterface(&decoded, "matchCreated", lg.Data); err != nil {
			return nil, errors.Wrap(err, "contracts: unpack matchCreated")
		}
		decoded.Raw = lg
		out = append(out, decoded)
	}
	return out, nil
}
