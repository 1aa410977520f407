package marketplace_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nais/agentdeploy/pkg/agentd/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = marketplace.Target{
	Name:     "node",
	URL:      "https://node.example",
	Hash:     "nodehash",
	Receiver: "0xreceiver",
}

func TestCreateAllocation(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v0/instances", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{"item_hash": "instance-1", "status": "pending"})
	}))
	defer server.Close()

	client := marketplace.NewClient(server.URL)
	handle, err := client.CreateAllocation(context.Background(), marketplace.AllocationRequest{
		Owner:     "0xowner",
		SSHKeys:   []string{"ssh-rsa AAAA"},
		Resources: marketplace.Resources{VCPUs: 1, MemoryMB: 2048, DiskMB: 20480},
		Metadata:  map[string]string{"agent_id": "agent"},
		Target:    target,
	})
	require.NoError(t, err)
	assert.Equal(t, "instance-1", handle)

	assert.Equal(t, "0xowner", body["address"])
	assert.Equal(t, "qemu", body["hypervisor"])
	assert.Equal(t, map[string]interface{}{"type": "superfluid", "receiver": "0xreceiver"}, body["payment"])
	assert.Equal(t, map[string]interface{}{"node": map[string]interface{}{"node_hash": "nodehash"}}, body["requirements"])
	assert.Equal(t, map[string]interface{}{"vcpus": float64(1), "memory": float64(2048), "disk": float64(20480)}, body["resources"])
	assert.NotContains(t, body, "Target")
}

func TestCreateAllocationWithoutHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "rejected"}`))
	}))
	defer server.Close()

	_, err := marketplace.NewClient(server.URL).CreateAllocation(context.Background(), marketplace.AllocationRequest{Target: target})
	assert.ErrorContains(t, err, "rejected")
}

func TestPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/price/instance-1", r.URL.Path)
		w.Write([]byte(`{"required_tokens": 0.00050000000000000000009}`))
	}))
	defer server.Close()

	community, operator, err := marketplace.NewClient(server.URL).Price(context.Background(), "instance-1")
	require.NoError(t, err)
	assert.Equal(t, "0.000100000000000000", community.String())
	assert.Equal(t, "0.000400000000000000", operator.String())

	t.Run("scientific notation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"required_tokens": 1.14e-05}`))
		}))
		defer server.Close()

		community, operator, err := marketplace.NewClient(server.URL).Price(context.Background(), "instance-1")
		require.NoError(t, err)
		assert.Equal(t, "0.000002280000000000", community.String())
		assert.Equal(t, "0.000009120000000000", operator.String())
	})
}

func TestNotifyFunded(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/control/allocation/notify", r.URL.Path)
			body := map[string]string{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "instance-1", body["instance"])
		}))
		defer server.Close()

		ok, err := marketplace.NewClient("").NotifyFunded(context.Background(), server.URL+"/", "instance-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejected with reason", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte("flow not found"))
		}))
		defer server.Close()

		ok, err := marketplace.NewClient("").NotifyFunded(context.Background(), server.URL, "instance-1")
		assert.False(t, ok)
		assert.ErrorContains(t, err, "flow not found")
	})
}

func TestResolveAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about/executions/list", r.URL.Path)
		w.Write([]byte(`{
			"instance-1": {"networking": {"ipv4": "172.16.4.1/24", "ipv6": "2a01:4f8:171:787:1:e942:3d9f:ab00/124"}},
			"instance-2": {"networking": {}}
		}`))
	}))
	defer server.Close()

	client := marketplace.NewClient("")

	ip, err := client.ResolveAddress(context.Background(), server.URL, "instance-1")
	require.NoError(t, err)
	assert.Equal(t, "2a01:4f8:171:787:1:e942:3d9f:ab01", ip)

	ip, err = client.ResolveAddress(context.Background(), server.URL, "instance-2")
	require.NoError(t, err)
	assert.Empty(t, ip)

	ip, err = client.ResolveAddress(context.Background(), server.URL, "missing")
	require.NoError(t, err)
	assert.Empty(t, ip)
}

func TestInstanceAddress(t *testing.T) {
	for _, tc := range []struct {
		iface string
		ip    string
		err   bool
	}{
		{iface: "fd00::1/124", ip: "fd00::2"},
		{iface: "fd00::ff", ip: "fd00::100"},
		{iface: "10.0.0.1/24", ip: "10.0.0.2"},
		{iface: "not-an-address", err: true},
		{iface: "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff", err: true},
	} {
		ip, err := marketplace.InstanceAddress(tc.iface)
		if tc.err {
			assert.Error(t, err, tc.iface)
			continue
		}
		assert.NoError(t, err, tc.iface)
		assert.Equal(t, tc.ip, ip, tc.iface)
	}
}

func TestTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	err := os.WriteFile(path, []byte(`
targets:
  - name: first
    url: https://first.example
    hash: aaa
    receiver: "0x1"
  - name: second
    url: https://second.example
    hash: bbb
    receiver: "0x2"
`), 0o600)
	require.NoError(t, err)

	targets, err := marketplace.LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	selected, err := marketplace.SelectTarget(targets, "second")
	require.NoError(t, err)
	assert.Equal(t, "bbb", selected.Hash)

	selected, err = marketplace.SelectTarget(targets, "")
	require.NoError(t, err)
	assert.Equal(t, "first", selected.Name)

	_, err = marketplace.SelectTarget(targets, "third")
	assert.Error(t, err)

	err = os.WriteFile(path, []byte("targets:\n  - name: broken\n"), 0o600)
	require.NoError(t, err)
	_, err = marketplace.LoadTargets(path)
	assert.ErrorContains(t, err, "url is required")
}
