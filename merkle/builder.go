package merkle

import "math/big"

var bigOne = big.NewInt(1)

// Builder accumulates an ordered append of digests or entire sub-trees,
// each with a repetition count, and folds them into a Tree. Repetition
// counts are tracked as arbitrary-precision integers because a builder's
// accumulated count can reach exactly 2^64 (E4), which does not fit in a
// uint64.
type Builder struct {
	leafs     []leaf
	nodes     map[Digest]node
	iterateds map[Digest][]Digest
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:     make(map[Digest]node),
		iterateds: make(map[Digest][]Digest),
	}
}

// Append adds digest as a single leaf.
func (b *Builder) Append(digest Digest) {
	b.AppendRepeated(digest, 1)
}

// AppendRepeated adds digest as a run of rep identical leaves.
func (b *Builder) AppendRepeated(digest Digest, rep uint64) {
	b.appendWithRepAndLog2Size(digest, nil, new(big.Int).SetUint64(rep))
}

// AppendTree adds an entire sub-tree as a single leaf slot.
func (b *Builder) AppendTree(tree *Tree) {
	b.AppendTreeRepeated(tree, 1)
}

// AppendTreeRepeated adds tree, repeated rep times, merging the
// sub-tree's nodes into this builder so a single tree node is never
// stored twice (structural sharing).
func (b *Builder) AppendTreeRepeated(tree *Tree, rep uint64) {
	log2 := tree.log2Size
	b.appendWithRepAndLog2Size(tree.root, &log2, new(big.Int).SetUint64(rep))
	for d, n := range tree.nodes {
		b.nodes[d] = n
	}
}

func (b *Builder) appendWithRepAndLog2Size(digest Digest, log2Size *uint32, rep *big.Int) {
	if rep.Sign() == 0 {
		fault("append with zero repetition")
	}

	b.addNewNode(digest)

	count := b.accumulate(rep)
	b.leafs = append(b.leafs, leaf{
		node:             digest,
		accumulatedCount: count,
		log2Size:         log2Size,
	})
}

func (b *Builder) accumulate(rep *big.Int) accumCount {
	if len(b.leafs) == 0 {
		return newCount(rep)
	}
	last := b.leafs[len(b.leafs)-1]
	if last.accumulatedCount.isZero() {
		fault("merkle builder is full")
	}
	return last.accumulatedCount.add(rep)
}

func (b *Builder) addNewNode(digest Digest) {
	if _, ok := b.nodes[digest]; !ok {
		b.nodes[digest] = leafNode(digest)
		b.iterateds[digest] = []Digest{digest}
	}
}

// Build assembles the accumulated leaves into a Tree. The final
// accumulated count must be a power of two (a programming-invariant
// violation otherwise): I4.
func (b *Builder) Build() *Tree {
	if len(b.leafs) == 0 {
		fault("no leafs in merkle builder")
	}
	last := b.leafs[len(b.leafs)-1]
	count := last.accumulatedCount

	log2Size, ok := count.log2()
	if !ok {
		fault("accumulated count %s is not a power of two", count.String())
	}

	root, _, _ := b.buildMerkle(b.leafs, log2Size, new(big.Int))

	nodes := make(map[Digest]node, len(b.nodes))
	for d, n := range b.nodes {
		nodes[d] = n
	}

	return &Tree{
		log2Size:     log2Size,
		leafLog2Size: last.log2Size,
		root:         root,
		leafs:        append([]leaf(nil), b.leafs...),
		nodes:        nodes,
	}
}

// buildMerkle recursively splits the leaf range [stride*2^log2Size+1,
// (stride+1)*2^log2Size] at its midpoint until it reduces to a single
// cell, returning the digest covering that range.
func (b *Builder) buildMerkle(leafs []leaf, log2Size uint32, stride *big.Int) (Digest, *big.Int, *big.Int) {
	span := new(big.Int).Lsh(bigOne, uint(log2Size))

	firstTime := new(big.Int).Mul(stride, span)
	firstTime.Add(firstTime, bigOne)
	lastTime := new(big.Int).Add(stride, bigOne)
	lastTime.Mul(lastTime, span)

	firstCell := findCellContaining(leafs, firstTime)
	lastCell := findCellContaining(leafs, lastTime)

	if firstCell == lastCell {
		node := leafs[firstCell].node
		iterated := b.iteratedMerkle(node, log2Size)
		return iterated, firstTime, lastTime
	}

	nextStride := new(big.Int).Lsh(stride, 1)
	leftStride := new(big.Int).Set(nextStride)
	rightStride := new(big.Int).Add(nextStride, bigOne)

	sub := leafs[firstCell : lastCell+1]
	left, _, _ := b.buildMerkle(sub, log2Size-1, leftStride)
	right, _, _ := b.buildMerkle(sub, log2Size-1, rightStride)

	result := b.joinNodes(left, right)
	return result, firstTime, lastTime
}

// iteratedMerkle returns the digest obtained by self-joining node 2^level
// times (iterated(d,0)=d, iterated(d,k)=join(iterated(d,k-1),
// iterated(d,k-1))), lazily extending the cache (I6).
func (b *Builder) iteratedMerkle(node Digest, level uint32) Digest {
	iterated, ok := b.iterateds[node]
	if !ok {
		fault("iterated digest not found for %s", node.Hex())
	}
	if int(level) < len(iterated) {
		return iterated[level]
	}

	i := len(iterated) - 1
	highest := iterated[i]
	for uint32(i) < level {
		highest = b.joinNodes(highest, highest)
		b.iterateds[node] = append(b.iterateds[node], highest)
		i++
	}
	return highest
}

func (b *Builder) joinNodes(left, right Digest) Digest {
	digest := Join(left, right)

	if _, ok := b.nodes[digest]; !ok {
		b.iterateds[digest] = []Digest{digest}
	}
	b.nodes[digest] = innerNode(left, right)

	return digest
}

// findCellContaining binary-searches leafs for the index of the run
// whose accumulated-count range contains elem.
func findCellContaining(leafs []leaf, elem *big.Int) int {
	left, right := 0, len(leafs)-1
	for left < right {
		needle := left + (right-left)/2
		if leafs[needle].accumulatedCount.cmp(elem) < 0 {
			left = needle + 1
		} else {
			right = needle
		}
	}
	return left
}
