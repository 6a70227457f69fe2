// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Net  *network.Network
	WS   websocket.Upgrader
	Evts *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	h.Log.Infow("websocket open", "traceid", v.TraceID, "subscription", id)
	defer h.Log.Infow("websocket closed", "traceid", v.TraceID, "subscription", id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Nodes returns the status of every node in the network.
func (h Handlers) Nodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	nodes := h.Net.Nodes()

	resp := make([]nodeStatus, len(nodes))
	for i, node := range nodes {
		resp[i] = toNodeStatus(node)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns the status of the specified node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	node, err := h.lookup(r)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toNodeStatus(node), http.StatusOK)
}

// BlocksByNumber returns all the blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	node, err := h.lookup(r)
	if err != nil {
		return err
	}

	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	// Resolve latest against the tip before the range is checked.
	latest := uint64(node.QueryChainLength() - 1)
	if from == state.QueryLatest {
		from = latest
	}
	if to == state.QueryLatest {
		to = latest
	}

	if from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	blocks := node.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, toBlocks(from, blocks), http.StatusOK)
}

// Mine signals the node's worker to mine the next block.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	node, err := h.lookup(r)
	if err != nil {
		return err
	}

	node.RetrieveWorker().SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: fmt.Sprintf("mining signalled for node %d", node.RetrieveNodeID()),
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// AddPeer registers a peer handle with the node. The handle must belong to a
// node on the network.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	node, err := h.lookup(r)
	if err != nil {
		return err
	}

	var ap addPeer
	if err := web.Decode(r, &ap); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if _, err := h.Net.Lookup(ap.Host); err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	if ap.Host == node.RetrieveHost() {
		return errs.NewTrusted(errors.New("a node can't be its own peer"), http.StatusBadRequest)
	}

	added := node.AddKnownPeer(peer.New(ap.Host))
	h.Log.Infow("add peer", "traceid", v.TraceID, "node", node.RetrieveNodeID(), "peer", ap.Host, "added", added)

	resp := struct {
		Added bool `json:"added"`
	}{
		Added: added,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

func (h Handlers) lookup(r *http.Request) (*state.State, error) {
	id, err := strconv.Atoi(web.Param(r, "id"))
	if err != nil {
		return nil, errs.NewTrusted(fmt.Errorf("invalid node id: %w", err), http.StatusBadRequest)
	}

	node, err := h.Net.LookupID(id)
	if err != nil {
		return nil, errs.NewTrusted(err, http.StatusNotFound)
	}

	return node, nil
}
