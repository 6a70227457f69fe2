package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func run(t *testing.T, args ...string) (string, error) {
	var buf bytes.Buffer

	cmd := newRootCmd("test", zap.NewNop().Sugar())
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestHashcash(t *testing.T) {
	out, err := run(t, "hashcash", "find", "foo", "-d", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "nonce:  78")

	out, err = run(t, "hashcash", "verify", "foo", "78", "-d", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "VALID")

	_, err = run(t, "hashcash", "verify", "foo", "77", "-d", "2")
	assert.True(t, errors.Is(err, ErrTokenInvalid))

	_, err = run(t, "hashcash", "find", "foo", "-d", "64", "--max-attempts", "100")
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	for _, broadcast := range []bool{false, true} {
		cfg := SimulateConfig{
			Nodes:      2,
			Blocks:     10,
			Difficulty: 1,
			MinerID:    1,
			Broadcast:  broadcast,
		}

		var buf bytes.Buffer
		sr, err := Simulate(context.Background(), cfg, zap.NewNop().Sugar(), &buf)
		require.NoError(t, err)

		require.Len(t, sr.Chains, 2)
		assert.Len(t, sr.Chains[1], 11)
		assert.Len(t, sr.Chains[2], 11)
		assert.Equal(t, database.GenesisBlock, sr.Chains[1][0])
		assert.True(t, sr.Identical())
	}

	out, err := run(t, "simulate", "-n", "3", "-b", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "chains identical")

	_, err = run(t, "simulate", "-n", "2", "-m", "5")
	assert.Error(t, err)

	_, err = Simulate(context.Background(), SimulateConfig{Nodes: 2, Blocks: 1, MinerID: 1}, zap.NewNop().Sugar(), &bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = run(t, "simulate", "-d", "0")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/nodes" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"host":"node1","difficulty":4,"chain_length":3,"latest_block_hash":"0000ab","known_peers":[{"host":"node2"}],"stats":{"mined":2,"accepted":2,"rejected":0}}]`))
	}))
	defer srv.Close()

	nodes, err := Status(resty.New().SetBaseURL(srv.URL))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 3, nodes[0].ChainLength)
	assert.Equal(t, uint64(2), nodes[0].Stats.Mined)

	out, err := run(t, "status", "-u", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "node 1 (node1)")
	assert.Contains(t, out, "mined 2 accepted 2 rejected 0")

	_, err = Status(resty.New().SetBaseURL(srv.URL + "/missing"))
	assert.Error(t, err)
}
