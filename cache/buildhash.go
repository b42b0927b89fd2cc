package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/graph"
	"github.com/elba-build/elba/target"
)

// BuildHash is the 32-byte SHA-256 fingerprint of "what to build", rendered
// as lowercase hex (spec.md §4.2).
type BuildHash string

func (h BuildHash) String() string { return string(h) }

// Hasher computes BuildHashes over a Graph[*Source], memoizing per node so
// that diamond-shaped dependency graphs (spec.md scenario 4) hash their
// shared subtree exactly once.
//
// A node's Targets are fixed for the lifetime of one job-graph
// construction pass (the root always uses rootTargets, every other node
// always uses [Lib] — spec.md §4.5), so memoizing by node index alone is
// sound: Hash is never called twice for the same node with different
// Targets within one Hasher's lifetime.
type Hasher struct {
	g           *graph.Graph[*Source]
	rootTargets target.Targets
	memo        map[graph.NodeIndex]BuildHash
}

// NewHasher builds a Hasher over g, using rootTargets for node 0 and [Lib]
// for every other node.
func NewHasher(g *graph.Graph[*Source], rootTargets target.Targets) *Hasher {
	return &Hasher{g: g, rootTargets: rootTargets, memo: make(map[graph.NodeIndex]BuildHash)}
}

var libOnly = target.New([]target.Target{target.LibTarget()})

// Hash computes node's BuildHash: the source identity, then the
// transitive dependency hashes in graph.Children(node) order, then the
// node's Targets byte encoding.
func (h *Hasher) Hash(node graph.NodeIndex) (BuildHash, error) {
	if bh, ok := h.memo[node]; ok {
		return bh, nil
	}

	src := h.g.Node(node)
	if src == nil {
		return "", errkind.Newf(errkind.IO, "build hash: node %d has no source", node)
	}

	ts := libOnly
	if node == 0 {
		ts = h.rootTargets
	}

	buf := append([]byte(nil), src.identityBytes()...)
	for _, c := range h.g.Children(node) {
		childHash, err := h.Hash(c)
		if err != nil {
			return "", err
		}
		buf = append(buf, []byte(childHash)...)
	}
	buf = append(buf, ts.Encode()...)

	digest := sha256.Sum256(buf)
	bh := BuildHash(hex.EncodeToString(digest[:]))
	h.memo[node] = bh
	return bh, nil
}
