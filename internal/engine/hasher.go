package engine

import (
	"crypto/sha256"
	"encoding/binary"
)

// chainSeed anchors the hash chain: the tip before any event is
// SHA-256(chainSeed), so an empty ledger still has a well-defined prev hash
// for sequence 0.
const chainSeed = "ParaLedger:genesis:v1"

// hashChain links each emitted event to its predecessor:
//
//	state_hash[n] = SHA-256(state_hash[n-1] || n || digest[n])
//
// The tip always equals the state hash of the last emitted event. Recovery
// resets it from durable state (snapshot or replayed event) so the chain
// continues unbroken across restarts.
type hashChain struct {
	last [32]byte
}

func newHashChain() *hashChain {
	return &hashChain{last: sha256.Sum256([]byte(chainSeed))}
}

// extend folds the next sequence and state digest into the chain, advances
// the tip, and returns the new state hash.
func (c *hashChain) extend(sequence int64, digest []byte) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))

	h := sha256.New()
	h.Write(c.last[:])
	h.Write(seq[:])
	h.Write(digest)
	copy(c.last[:], h.Sum(nil))
	return c.last
}

func (c *hashChain) tip() [32]byte { return c.last }

// setTip overwrites the tip during snapshot restore and event replay.
func (c *hashChain) setTip(hash [32]byte) { c.last = hash }
