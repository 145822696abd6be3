package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
)

func chainScript(t *testing.T, body string) config.NetworkConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return config.NetworkConfig{Command: "sh " + path}
}

func TestExecClient_Deploy(t *testing.T) {
	dir := t.TempDir()
	cfg := chainScript(t, `cat > request.json
printf '%s' '{"address":"0xabc","tx_hash":"0xt1","metadata":{"block":"7"}}'
`)
	client, err := NewExecClient(cfg, dir)
	require.NoError(t, err)

	receipt, err := client.Deploy(context.Background(), Request{
		Unit:     "Token",
		Artifact: &core.Artifact{ABI: []byte(`[]`), Bytecode: []byte{0x60, 0x80}},
		Args:     []string{"1000"},
		Account:  "deployer",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.Address)
	assert.Equal(t, "0xt1", receipt.TxHash)
	assert.Equal(t, "7", receipt.Metadata["block"])

	sent, err := os.ReadFile(filepath.Join(dir, "request.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"deploy","unit":"Token","abi":[],"bytecode":"0x6080","args":["1000"],"account":"deployer"}`, string(sent))
}

func TestExecClient_DeployFailure(t *testing.T) {
	cfg := chainScript(t, "cat >/dev/null\necho 'insufficient funds' >&2\nexit 2\n")
	client, err := NewExecClient(cfg, "")
	require.NoError(t, err)

	_, err = client.Deploy(context.Background(), Request{Unit: "Token", Artifact: &core.Artifact{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 2: insufficient funds")
}

func TestExecClient_DeployWithoutAddress(t *testing.T) {
	cfg := chainScript(t, "cat >/dev/null\nprintf '{}'\n")
	client, err := NewExecClient(cfg, "")
	require.NoError(t, err)

	_, err = client.Deploy(context.Background(), Request{Unit: "Token", Artifact: &core.Artifact{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no address")
}

func TestExecClient_Call(t *testing.T) {
	dir := t.TempDir()
	cfg := chainScript(t, `cat > request.json
printf '%s' '{"output":{"balance":"10"}}'
`)
	client, err := NewExecClient(cfg, dir)
	require.NoError(t, err)

	res, err := client.(Caller).Call(context.Background(), CallRequest{Unit: "Token", Address: "0xabc", Method: "balanceOf"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":"10"}`, string(res.Output))

	sent, err := os.ReadFile(filepath.Join(dir, "request.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"call","unit":"Token","address":"0xabc","method":"balanceOf","args":[]}`, string(sent))
}

func TestDriverRegistry_HasExec(t *testing.T) {
	r := NewDriverRegistry()
	_, err := r.Lookup("exec")
	require.NoError(t, err)
	_, err = r.Lookup("hardhat")
	assert.Error(t, err)
}
