package metrics

import (
	"strconv"

	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/prometheus/client_golang/prometheus"
)

// chainCollector reads the chain state of every node at scrape time.
type chainCollector struct {
	net      *network.Network
	length   *prometheus.Desc
	peers    *prometheus.Desc
	mined    *prometheus.Desc
	accepted *prometheus.Desc
	rejected *prometheus.Desc
}

func newChainCollector(net *network.Network) *chainCollector {
	labels := []string{"node"}

	return &chainCollector{
		net:      net,
		length:   prometheus.NewDesc(namespace+"_chain_length", "Number of blocks in the node's chain, genesis included.", labels, nil),
		peers:    prometheus.NewDesc(namespace+"_known_peers", "Number of peers the node sends blocks to.", labels, nil),
		mined:    prometheus.NewDesc(namespace+"_blocks_mined_total", "Blocks mined and added by the node.", labels, nil),
		accepted: prometheus.NewDesc(namespace+"_blocks_accepted_total", "Blocks the node appended to its chain.", labels, nil),
		rejected: prometheus.NewDesc(namespace+"_blocks_rejected_total", "Blocks the node refused.", labels, nil),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *chainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.length
	ch <- c.peers
	ch <- c.mined
	ch <- c.accepted
	ch <- c.rejected
}

// Collect implements the prometheus.Collector interface.
func (c *chainCollector) Collect(ch chan<- prometheus.Metric) {
	for _, node := range c.net.Nodes() {
		id := strconv.Itoa(node.RetrieveNodeID())
		stats := node.RetrieveStats()

		ch <- prometheus.MustNewConstMetric(c.length, prometheus.GaugeValue, float64(node.QueryChainLength()), id)
		ch <- prometheus.MustNewConstMetric(c.peers, prometheus.GaugeValue, float64(len(node.RetrieveKnownPeers())), id)
		ch <- prometheus.MustNewConstMetric(c.mined, prometheus.CounterValue, float64(stats.Mined), id)
		ch <- prometheus.MustNewConstMetric(c.accepted, prometheus.CounterValue, float64(stats.Accepted), id)
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.Rejected), id)
	}
}
