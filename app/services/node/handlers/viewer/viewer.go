// Package viewer serves a page that shows the chains of the nodes and the
// live event feed.
package viewer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/web"
)

//go:embed assets/index.html
var assets embed.FS

type index struct {
	tmpl  *template.Template
	build string
	net   *network.Network
}

type nodeRow struct {
	ID          int
	Host        string
	ChainLength int
	Tip         string
	Peers       int
	Mined       uint64
	Accepted    uint64
	Rejected    uint64
}

// Routes binds the viewer page to the app.
func Routes(app *web.App, build string, net *network.Network) error {
	tmpl, err := template.ParseFS(assets, "assets/index.html")
	if err != nil {
		return fmt.Errorf("loading index template: %w", err)
	}

	ig := index{
		tmpl:  tmpl,
		build: build,
		net:   net,
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	return nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	nodes := ig.net.Nodes()

	rows := make([]nodeRow, len(nodes))
	for i, node := range nodes {
		stats := node.RetrieveStats()
		rows[i] = nodeRow{
			ID:          node.RetrieveNodeID(),
			Host:        node.RetrieveHost(),
			ChainLength: node.QueryChainLength(),
			Tip:         node.RetrieveLatestBlock().String(),
			Peers:       len(node.RetrieveKnownPeers()),
			Mined:       stats.Mined,
			Accepted:    stats.Accepted,
			Rejected:    stats.Rejected,
		}
	}

	data := struct {
		Build string
		Nodes []nodeRow
	}{
		Build: ig.build,
		Nodes: rows,
	}

	var buf bytes.Buffer
	if err := ig.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute index template: %w", err)
	}

	if err := web.SetStatusCode(ctx, http.StatusOK); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	return nil
}
