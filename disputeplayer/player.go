package disputeplayer

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rollups-dave/node/contracts"
	"github.com/rollups-dave/node/internal/rlog"
	"github.com/rollups-dave/node/merkle"
)

// CommitmentSource supplies this node's own view of a tournament level:
// the local MerkleTree built over that level's stride, and a leaf-level
// step-access proof for winning a leaf match. It is the seam between
// disputeplayer and the emulator-backed commitment machinery (C2),
// kept narrow so tests can supply a fake.
type CommitmentSource interface {
	// Tree returns this node's commitment tree for a tournament at
	// level, covering 2^log2StrideCount leafs of width 2^log2Stride,
	// rooted at baseBigCycle.
	Tree(ctx context.Context, level, log2Stride, log2StrideCount, baseBigCycle uint64) (*merkle.Tree, error)
	// StepAccessLog runs the machine to the disputed micro-architecture
	// step at bigCycle/ucycle and returns the step-level access log
	// sealLeafMatch and winLeafMatch require.
	StepAccessLog(ctx context.Context, bigCycle, ucycle uint64) ([]byte, error)
}

// BlockNumberReader is the narrow slice of ethclient.Client Player
// needs to stamp the ClockState it reads for each commitment.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Player walks one epoch's root tournament tree and drives this node's
// commitments through the dispute protocol (spec.md §4.8). One Player
// exists per sealed epoch currently under dispute.
type Player struct {
	backend        bind.ContractBackend
	filterer       ethereum.LogFilterer
	blocks         BlockNumberReader
	transactor     *bind.TransactOpts
	commitments    CommitmentSource
	gc             *GarbageCollector
	rootTournament common.Address
	sleepDuration  time.Duration

	callers map[common.Address]*contracts.TournamentCaller
}

func New(backend bind.ContractBackend, filterer ethereum.LogFilterer, blocks BlockNumberReader, transactor *bind.TransactOpts, commitments CommitmentSource, rootTournament common.Address, sleepDuration time.Duration) *Player {
	p := &Player{
		backend:        backend,
		filterer:       filterer,
		blocks:         blocks,
		transactor:     transactor,
		commitments:    commitments,
		rootTournament: rootTournament,
		sleepDuration:  sleepDuration,
		callers:        map[common.Address]*contracts.TournamentCaller{},
	}
	p.gc = NewGarbageCollector(arenaAdapter{p}, rootTournament)
	return p
}

// Start implements supervisor.Worker: it ticks until the tournament
// terminates (root TournamentState.Winner != nil) or ctx is cancelled.
func (p *Player) Start(ctx context.Context) error {
	for {
		done, err := p.tick(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.sleepDuration):
		}
	}
}

func (p *Player) tick(ctx context.Context) (bool, error) {
	states, blockNumber, err := p.readTournamentTree(ctx)
	if err != nil {
		return false, errors.Wrap(err, "disputeplayer: read tournament tree")
	}

	root := states[p.rootTournament]
	if root == nil {
		// C6 hasn't sealed this epoch's root tournament on chain yet;
		// no-op tick (spec.md §5 ordering note).
		return false, nil
	}
	if root.Winner != nil {
		return true, nil
	}

	if err := p.react(ctx, p.rootTournament, blockNumber, states); err != nil {
		return false, err
	}
	if err := p.gc.React(ctx, states); err != nil {
		rlog.Error("disputeplayer: garbage collection failed", "err", err)
	}
	return false, nil
}

// readTournamentTree reads the root tournament and the matches opened
// in it, building the in-memory TournamentStateMap, and returns the
// block number it was read at. Inner tournaments are not read: no
// MatchState gets an InnerTournament address here, so the map holds
// the root tournament only.
func (p *Player) readTournamentTree(ctx context.Context) (TournamentStateMap, uint64, error) {
	blockNumber, err := p.blocks.BlockNumber(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "disputeplayer: read current block number")
	}

	states := TournamentStateMap{}
	if err := p.readTournament(ctx, p.rootTournament, nil, 0, 0, blockNumber, states); err != nil {
		return nil, 0, err
	}
	return states, blockNumber, nil
}

func (p *Player) readTournament(ctx context.Context, address common.Address, parent *common.Address, level, baseBigCycle, blockNumber uint64, states TournamentStateMap) error {
	caller, err := p.caller(address)
	if err != nil {
		return err
	}

	constants, err := caller.LevelConstants(ctx)
	if err != nil {
		// the root tournament may not exist yet if C6 hasn't sealed this
		// epoch; tolerate the read failing for the root only.
		if parent == nil {
			return nil
		}
		return errors.Wrapf(err, "disputeplayer: read level constants for %s", address)
	}

	var state *TournamentState
	if parent == nil {
		state = NewRootTournamentState(address)
	} else {
		state = NewInnerTournamentState(address, level, baseBigCycle, *parent)
	}
	state.Log2Stride = constants.Log2Step
	state.Log2StrideCount = constants.Height
	state.MaxLevel = constants.Level
	states[address] = state

	matches, err := caller.FilterMatchCreated(ctx, p.filterer, 0, blockNumber)
	if err != nil {
		return errors.Wrapf(err, "disputeplayer: filter matchCreated for %s", address)
	}
	for _, mc := range matches {
		one, err := merkle.FromBytes(mc.Left[:])
		if err != nil {
			return err
		}
		two, err := merkle.FromBytes(mc.Right[:])
		if err != nil {
			return err
		}
		parentDigest, err := merkle.FromBytes(mc.Parent[:])
		if err != nil {
			return err
		}
		id := MatchID{CommitmentOne: one, CommitmentTwo: two}

		onChainMatch, err := caller.GetMatch(ctx, id.ToContract())
		if err != nil {
			return errors.Wrapf(err, "disputeplayer: read match state for %s", id.Hash().Hex())
		}
		leftNode, err := merkle.FromBytes(onChainMatch.LeftNode[:])
		if err != nil {
			return err
		}
		rightNode, err := merkle.FromBytes(onChainMatch.RightNode[:])
		if err != nil {
			return err
		}

		m := &MatchState{
			ID:                  id,
			OtherParent:         parentDigest,
			LeftNode:            leftNode,
			RightNode:           rightNode,
			RunningLeafPosition: onChainMatch.RunningLeafPosition,
			CurrentHeight:       onChainMatch.CurrentHeight,
			LeafCycle:           onChainMatch.LeafCycle,
			TournamentAddress:   address,
			BaseBigCycle:        baseBigCycle,
		}
		state.Matches = append(state.Matches, m)

		for _, commitmentHash := range [2]merkle.Digest{one, two} {
			if err := p.readCommitmentState(ctx, caller, state, commitmentHash, blockNumber); err != nil {
				return err
			}
		}
	}

	return nil
}

// readCommitmentState fetches and stores commitmentHash's on-chain
// clock and claimed final state into state.CommitmentStates, so move
// and gc.go's reactTournament can find the status of every commitment
// referenced by a match, not just this node's own.
func (p *Player) readCommitmentState(ctx context.Context, caller *contracts.TournamentCaller, state *TournamentState, commitmentHash merkle.Digest, blockNumber uint64) error {
	onChain, err := caller.GetCommitment(ctx, [32]byte(commitmentHash))
	if err != nil {
		return errors.Wrapf(err, "disputeplayer: read commitment state for %s", commitmentHash.Hex())
	}
	finalState, err := merkle.FromBytes(onChain.FinalState[:])
	if err != nil {
		return err
	}
	state.CommitmentStates[commitmentHash] = &CommitmentState{
		Clock: ClockState{
			Allowance:    onChain.Allowance,
			StartInstant: onChain.StartInstant,
			BlockNumber:  blockNumber,
		},
		FinalState: finalState,
	}
	return nil
}

// react implements steps 2-5 of spec.md §4.8 for one tournament and
// recurses into any inner tournaments opened by this node's own
// matches.
func (p *Player) react(ctx context.Context, address common.Address, blockNumber uint64, states TournamentStateMap) error {
	state := states[address]
	caller, err := p.caller(address)
	if err != nil {
		return err
	}

	localDigest, localTree, err := p.localCommitment(ctx, state)
	if err != nil {
		return err
	}
	commitmentHash := [32]byte(localDigest)

	onChain, err := caller.GetCommitment(ctx, commitmentHash)
	if err != nil {
		return errors.Wrap(err, "disputeplayer: read local commitment state")
	}
	if err := p.readCommitmentState(ctx, caller, state, localDigest, blockNumber); err != nil {
		return errors.Wrap(err, "disputeplayer: store local commitment state")
	}

	if !onChain.HasOpenMatch && onChain.Allowance == 0 && onChain.StartInstant == 0 {
		return p.join(caller, localTree, commitmentHash)
	}

	if !onChain.HasOpenMatch {
		// joined, no dispute open against us: nothing to do until an
		// opponent opens a match.
		return nil
	}

	for _, m := range state.Matches {
		if m.ID.CommitmentOne != localDigest && m.ID.CommitmentTwo != localDigest {
			continue
		}
		if err := p.move(ctx, caller, state, m, localTree, localDigest); err != nil {
			return err
		}
		if m.InnerTournament != nil {
			if err := p.readTournament(ctx, *m.InnerTournament, &address, state.Level, m.BaseBigCycle, blockNumber, states); err != nil {
				return err
			}
			if err := p.react(ctx, *m.InnerTournament, blockNumber, states); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Player) localCommitment(ctx context.Context, state *TournamentState) (merkle.Digest, *merkle.Tree, error) {
	tree, err := p.commitments.Tree(ctx, state.Level, state.Log2Stride, state.Log2StrideCount, state.BaseBigCycle)
	if err != nil {
		return merkle.Digest{}, nil, errors.Wrap(err, "disputeplayer: build local commitment")
	}
	return tree.RootHash(), tree, nil
}

// join submits this node's commitment to the tournament, per step 2's
// "not yet joined" branch.
func (p *Player) join(caller *contracts.TournamentCaller, tree *merkle.Tree, commitmentHash [32]byte) error {
	left, right := tree.RootChildren()
	finalState, proof := tree.Last()
	rlog.Info("disputeplayer: joining tournament", "tournament", caller.Address(), "commitment", merkle.Digest(commitmentHash).Hex())
	_, err := caller.JoinTournament(p.transactor, [32]byte(finalState), toBytes32Slice(proof), [32]byte(left), [32]byte(right))
	if err != nil {
		rlog.Error("disputeplayer: join reverted, retrying next tick", "tournament", caller.Address(), "err", err)
	}
	return nil
}

// move implements steps 2 (advance), 3 (seal inner), 4 (seal leaf) and
// 5 (win) of spec.md §4.8, picking between the defensive (bisecting)
// and aggressive (winning) branch per moves.go's clock policy.
func (p *Player) move(ctx context.Context, caller *contracts.TournamentCaller, state *TournamentState, m *MatchState, tree *merkle.Tree, own merkle.Digest) error {
	ownStatus, ok := state.CommitmentStates[own]
	if !ok {
		return errors.Newf("disputeplayer: no local status for commitment %s", own.Hex())
	}
	opponent := opponentCommitment(m, own)
	opponentStatus, ok := state.CommitmentStates[opponent]
	if !ok {
		return errors.Newf("disputeplayer: no local status for commitment %s", opponent.Hex())
	}

	if !ownStatus.Clock.HasTime() {
		// a dead clock cannot move; wait for the opponent or for gc to
		// clear this match.
		return nil
	}

	if preferAggressiveMove(ownStatus.Clock, opponentStatus.Clock) && !opponentStatus.Clock.HasTime() {
		return p.win(ctx, caller, state, m, tree)
	}

	return p.advanceOrSeal(ctx, caller, state, m, tree)
}

// win submits win_inner_match or win_leaf_match once the opponent's
// clock has expired (spec.md §4.8 step 5).
func (p *Player) win(ctx context.Context, caller *contracts.TournamentCaller, state *TournamentState, m *MatchState, tree *merkle.Tree) error {
	if m.InnerTournament != nil {
		_, err := caller.WinInnerMatch(p.transactor, m.ID.ToContract(), *m.InnerTournament)
		if err != nil {
			rlog.Error("disputeplayer: winInnerMatch reverted, retrying next tick", "err", err)
		}
		return nil
	}

	accessLog, err := p.commitments.StepAccessLog(ctx, m.BaseBigCycle+m.RunningLeafPosition.Uint64(), 0)
	if err != nil {
		return errors.Wrap(err, "disputeplayer: build step access log for win")
	}
	if _, err := caller.WinLeafMatch(p.transactor, m.ID.ToContract(), accessLog); err != nil {
		rlog.Error("disputeplayer: winLeafMatch reverted, retrying next tick", "err", err)
	}
	return nil
}

// advanceOrSeal implements the defensive branch of move: bisect the
// disputed match one step, or seal it once at the last step.
func (p *Player) advanceOrSeal(ctx context.Context, caller *contracts.TournamentCaller, state *TournamentState, m *MatchState, tree *merkle.Tree) error {
	leaf, proof := tree.ProveLeaf(m.RunningLeafPosition.Uint64())
	left, right, _ := tree.NodeChildren(m.OtherParent)

	atLastStep := m.CurrentHeight+1 >= state.Log2StrideCount

	if !atLastStep {
		disputed := right
		if left != m.LeftNode {
			disputed = left
		}
		newLeft, newRight, _ := tree.NodeChildren(disputed)
		_, err := caller.AdvanceMatch(p.transactor, m.ID.ToContract(), [32]byte(left), [32]byte(right), [32]byte(newLeft), [32]byte(newRight))
		if err != nil {
			rlog.Error("disputeplayer: advanceMatch reverted, retrying next tick", "err", err)
		}
		return nil
	}

	if state.Level < state.MaxLevel {
		_, err := caller.SealInnerMatch(p.transactor, m.ID.ToContract(), [32]byte(left), [32]byte(right), [32]byte(leaf), toBytes32Slice(proof))
		if err != nil {
			rlog.Error("disputeplayer: sealInnerMatch reverted, retrying next tick", "err", err)
		}
		return nil
	}

	accessLog, err := p.commitments.StepAccessLog(ctx, m.BaseBigCycle+m.RunningLeafPosition.Uint64(), 0)
	if err != nil {
		return errors.Wrap(err, "disputeplayer: build step access log")
	}
	_, err = caller.SealLeafMatch(p.transactor, m.ID.ToContract(), [32]byte(left), [32]byte(right), [32]byte(leaf), toBytes32Slice(proof), accessLog)
	if err != nil {
		rlog.Error("disputeplayer: sealLeafMatch reverted, retrying next tick", "err", err)
	}
	return nil
}

func toBytes32Slice(p merkle.Proof) [][32]byte {
	out := make([][32]byte, len(p))
	for i, d := range p {
		out[i] = [32]byte(d)
	}
	return out
}

func (p *Player) caller(address common.Address) (*contracts.TournamentCaller, error) {
	if c, ok := p.callers[address]; ok {
		return c, nil
	}
	c, err := contracts.NewTournamentCaller(address, p.backend)
	if err != nil {
		return nil, err
	}
	p.callers[address] = c
	return c, nil
}

// arenaAdapter adapts Player's per-address TournamentCaller cache to
// the ArenaSender interface gc.go needs.
type arenaAdapter struct{ p *Player }

func (a arenaAdapter) EliminateMatch(ctx context.Context, tournament common.Address, id MatchID) error {
	caller, err := a.p.caller(tournament)
	if err != nil {
		return err
	}
	_, err = caller.EliminateMatch(a.p.transactor, id.ToContract())
	return err
}

func (a arenaAdapter) EliminateInnerTournament(ctx context.Context, tournament, child common.Address) error {
	caller, err := a.p.caller(tournament)
	if err != nil {
		return err
	}
	_, err = caller.EliminateInnerTournament(a.p.transactor, child)
	return err
}
