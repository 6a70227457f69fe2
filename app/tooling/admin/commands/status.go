package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// NodeStatus is the form of a node returned by the node service.
type NodeStatus struct {
	ID              int    `json:"id"`
	Host            string `json:"host"`
	Difficulty      int    `json:"difficulty"`
	ChainLength     int    `json:"chain_length"`
	LatestBlockHash string `json:"latest_block_hash"`
	KnownPeers      []struct {
		Host string `json:"host"`
	} `json:"known_peers"`
	Stats struct {
		Mined    uint64 `json:"mined"`
		Accepted uint64 `json:"accepted"`
		Rejected uint64 `json:"rejected"`
	} `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Status retrieves the status of every node from the node service.
func Status(client *resty.Client) ([]NodeStatus, error) {
	var nodes []NodeStatus
	var er errorResponse

	resp, err := client.R().
		SetHeader("Accept", "application/json").
		SetResult(&nodes).
		SetError(&er).
		Get("/v1/nodes")
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("query nodes: status %d: %s", resp.StatusCode(), er.Error)
	}

	return nodes, nil
}

func newStatusCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of every node in a running node service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := resty.New().
				SetBaseURL(url).
				SetTimeout(timeout)

			nodes, err := Status(client)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			for _, node := range nodes {
				bold.Fprintf(out, "node %d (%s)\n", node.ID, node.Host)
				fmt.Fprintf(out, "  difficulty: %d\n", node.Difficulty)
				fmt.Fprintf(out, "  length:     %d\n", node.ChainLength)
				fmt.Fprintf(out, "  tip:        %s\n", node.LatestBlockHash)
				fmt.Fprintf(out, "  peers:      %d\n", len(node.KnownPeers))
				fmt.Fprintf(out, "  blocks:     mined %d accepted %d rejected %d\n", node.Stats.Mined, node.Stats.Accepted, node.Stats.Rejected)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node service.")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout.")

	return cmd
}
