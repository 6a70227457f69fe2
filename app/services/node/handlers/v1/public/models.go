package public

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

type nodeStatus struct {
	ID              int         `json:"id"`
	Host            string      `json:"host"`
	Difficulty      int         `json:"difficulty"`
	ChainLength     int         `json:"chain_length"`
	LatestBlockHash string      `json:"latest_block_hash"`
	KnownPeers      []peer.Peer `json:"known_peers"`
	Stats           state.Stats `json:"stats"`
}

func toNodeStatus(node *state.State) nodeStatus {
	status := node.RetrieveStatus()

	return nodeStatus{
		ID:              node.RetrieveNodeID(),
		Host:            node.RetrieveHost(),
		Difficulty:      node.RetrieveDifficulty(),
		ChainLength:     status.ChainLength,
		LatestBlockHash: status.LatestBlockHash,
		KnownPeers:      status.KnownPeers,
		Stats:           node.RetrieveStats(),
	}
}

type block struct {
	Number  uint64 `json:"number"`
	Hash    string `json:"hash"`
	MinerID int    `json:"miner_id"`
	Nonce   uint64 `json:"nonce"`
	Genesis bool   `json:"genesis,omitempty"`
}

func toBlocks(from uint64, blocks []database.Block) []block {
	out := make([]block, len(blocks))
	for i, blk := range blocks {
		out[i] = block{
			Number:  from + uint64(i),
			Hash:    blk.Hash,
			MinerID: blk.MinerID,
			Nonce:   blk.Nonce,
			Genesis: blk.IsGenesis(),
		}
	}
	return out
}

type addPeer struct {
	Host string `json:"host" validate:"required,max=255"`
}
