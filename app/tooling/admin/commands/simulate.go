package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Set of error variables for the simulation.
var (
	ErrChainsDiverged = errors.New("chains diverged")
	ErrInvalidConfig  = errors.New("invalid simulation config")
)

// SimulateConfig describes a run of the distributed nodes scenario.
type SimulateConfig struct {
	Nodes      int
	Blocks     int
	Difficulty int
	MinerID    int
	Broadcast  bool
}

// SimulateResult carries the chains held by each node after a run.
type SimulateResult struct {
	Chains map[int][]database.Block
}

// Identical reports whether every node holds the same chain.
func (sr SimulateResult) Identical() bool {
	var first []database.Block
	for _, chain := range sr.Chains {
		if first == nil {
			first = chain
			continue
		}

		if len(chain) != len(first) {
			return false
		}
		for i := range chain {
			if chain[i] != first[i] {
				return false
			}
		}
	}

	return true
}

// Simulate builds the nodes, has the miner find the configured number of
// blocks and hands every block to every node. By default the driver calls
// AddBlock on each node. With Broadcast the network delivers the block.
func Simulate(ctx context.Context, cfg SimulateConfig, log *zap.SugaredLogger, out io.Writer) (SimulateResult, error) {
	if cfg.Nodes < 1 {
		return SimulateResult{}, fmt.Errorf("need at least one node, got %d", cfg.Nodes)
	}
	if cfg.Difficulty < 1 {
		return SimulateResult{}, fmt.Errorf("%w: difficulty must be at least 1, got %d", ErrInvalidConfig, cfg.Difficulty)
	}
	if cfg.MinerID < 1 || cfg.MinerID > cfg.Nodes {
		return SimulateResult{}, fmt.Errorf("miner %d is not one of the %d nodes", cfg.MinerID, cfg.Nodes)
	}

	ev := func(v string, args ...any) {
		log.Debugf(v, args...)
	}

	net := network.New(ev)
	for id := 1; id <= cfg.Nodes; id++ {
		node, err := state.New(state.Config{
			NodeID:     id,
			Difficulty: cfg.Difficulty,
			Propagator: net,
			EvHandler:  ev,
		})
		if err != nil {
			return SimulateResult{}, fmt.Errorf("constructing node %d: %w", id, err)
		}

		if err := net.Register(node); err != nil {
			return SimulateResult{}, err
		}
	}

	nodes := net.Nodes()
	for _, node := range nodes {
		for _, other := range nodes {
			node.AddKnownPeer(peer.New(other.RetrieveHost()))
		}
	}

	miner, err := net.LookupID(cfg.MinerID)
	if err != nil {
		return SimulateResult{}, err
	}

	bar := progressbar.NewOptions(cfg.Blocks,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(fmt.Sprintf("node %d mining", cfg.MinerID)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("blocks"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	for i := 0; i < cfg.Blocks; i++ {
		block, err := miner.FindNewBlock(ctx)
		if err != nil {
			return SimulateResult{}, fmt.Errorf("mining block %d: %w", i+1, err)
		}

		switch cfg.Broadcast {
		case true:
			if result := miner.AddBlock(block); !result.Accepted() {
				return SimulateResult{}, fmt.Errorf("miner rejected its own block: %w", result.Reason)
			}

			results, err := net.Broadcast(ctx, miner.RetrieveHost(), block)
			if err != nil {
				return SimulateResult{}, fmt.Errorf("broadcast block %d: %w", i+1, err)
			}
			for host, result := range results {
				if !result.Accepted() {
					log.Infow("simulate", "status", "block rejected", "host", host, "reason", result.Reason)
				}
			}

		default:
			for _, node := range nodes {
				if result := node.AddBlock(block); !result.Accepted() {
					log.Infow("simulate", "status", "block rejected", "node", node.RetrieveNodeID(), "reason", result.Reason)
				}
			}
		}

		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(out)

	sr := SimulateResult{
		Chains: make(map[int][]database.Block, len(nodes)),
	}
	for _, node := range nodes {
		sr.Chains[node.RetrieveNodeID()] = node.RetrieveBlocks()
	}

	return sr, nil
}

func newSimulateCmd(log *zap.SugaredLogger) *cobra.Command {
	var cfg SimulateConfig

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the distributed nodes scenario in process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			out := cmd.OutOrStdout()

			sr, err := Simulate(ctx, cfg, log, out)
			if err != nil {
				return err
			}

			for id := 1; id <= cfg.Nodes; id++ {
				chain := sr.Chains[id]
				fmt.Fprintf(out, "node %d: length %d tip %s\n", id, len(chain), chain[len(chain)-1])
			}

			if !sr.Identical() {
				color.New(color.FgRed).Fprintln(out, "chains diverged")
				return ErrChainsDiverged
			}

			color.New(color.FgGreen).Fprintln(out, "chains identical")
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Nodes, "nodes", "n", 2, "Number of nodes in the network.")
	cmd.Flags().IntVarP(&cfg.Blocks, "blocks", "b", 10, "Number of blocks the miner finds.")
	cmd.Flags().IntVarP(&cfg.Difficulty, "difficulty", "d", 1, "Number of leading zeros a block hash must have, at least 1.")
	cmd.Flags().IntVarP(&cfg.MinerID, "miner", "m", 1, "Id of the node that mines.")
	cmd.Flags().BoolVar(&cfg.Broadcast, "broadcast", false, "Deliver blocks through the network instead of the driver.")

	return cmd
}
