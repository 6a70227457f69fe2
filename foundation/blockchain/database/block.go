package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/powchain/foundation/blockchain/hashcash"
)

// Set of errors returned when a block fails validation. Both wrap
// ErrInvalidBlock so callers can check for any validation failure.
var (
	ErrInvalidBlock   = errors.New("invalid block")
	ErrHashMismatch   = fmt.Errorf("%w: hash does not match the digest for its parent", ErrInvalidBlock)
	ErrPuzzleUnsolved = fmt.Errorf("%w: digest does not solve the puzzle", ErrInvalidBlock)
)

// GenesisBlock is the sentinel every chain starts from. It is not
// required to solve the puzzle.
var GenesisBlock = Block{Hash: "", MinerID: 0, Nonce: 0}

// =============================================================================

// Block represents a solved puzzle linked to the block before it.
type Block struct {
	Hash    string `json:"hash"`     // Digest of the parent hash, the miner id and the nonce.
	MinerID int    `json:"miner_id"` // Node that solved the puzzle.
	Nonce   uint64 `json:"nonce"`    // Value identified to solve the puzzle.
}

// Content returns the bytes a miner searches a nonce for when building
// on top of the parent hash.
func Content(parentHash string, minerID int) []byte {
	return []byte(parentHash + strconv.Itoa(minerID))
}

// POW performs the work of finding a nonce for the miner on top of the
// parent block. The search can be cancelled through the context.
func POW(ctx context.Context, minerID int, difficulty int, parent Block, opts ...hashcash.Option) (Block, error) {
	hash, nonce, err := hashcash.FindToken(ctx, Content(parent.Hash, minerID), difficulty, opts...)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Hash:    hash,
		MinerID: minerID,
		Nonce:   nonce,
	}

	return nb, nil
}

// ValidateBlock checks the block can be appended after the parent block.
func (b Block) ValidateBlock(parent Block, difficulty int) error {
	digest := hashcash.Hash(Content(parent.Hash, b.MinerID), b.Nonce)

	if b.Hash != digest {
		return fmt.Errorf("%w, got %.16s, exp %.16s", ErrHashMismatch, b.Hash, digest)
	}

	if !hashcash.IsSolved(digest, difficulty) {
		return fmt.Errorf("%w, zeros %d, difficulty %d", ErrPuzzleUnsolved, hashcash.CountLeadingZeros(digest), difficulty)
	}

	return nil
}

// IsGenesis reports whether the block is the genesis sentinel.
func (b Block) IsGenesis() bool {
	return b == GenesisBlock
}

// String implements the Stringer interface for logging.
func (b Block) String() string {
	if b.IsGenesis() {
		return "genesis"
	}

	return fmt.Sprintf("%.16s:%d:%d", b.Hash, b.MinerID, b.Nonce)
}
