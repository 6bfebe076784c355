package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"escrowchain/crypto"
	"escrowchain/native/escrow"
	"escrowchain/rpc"
)

func runCapture(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeResult(t *testing.T, out string) map[string]string {
	t.Helper()
	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return result
}

func TestUsageAndUnknownCommand(t *testing.T) {
	code, _, stderr := runCapture(t)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: escrowctl")

	code, _, stderr = runCapture(t, "frobnicate")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: frobnicate")

	code, stdout, _ := runCapture(t, "help")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "commitment")
}

func TestKeygenAndAddress(t *testing.T) {
	original := readPassphrase
	readPassphrase = func(bool) (string, error) { return "test-pass", nil }
	defer func() { readPassphrase = original }()

	path := filepath.Join(t.TempDir(), "key.json")
	code, stdout, stderr := runCapture(t, "keygen", "--keystore", path)
	require.Equal(t, 0, code, stderr)
	created := decodeResult(t, stdout)
	require.True(t, strings.HasPrefix(created["address"], crypto.AddressPrefix+"1"))

	code, _, stderr = runCapture(t, "keygen", "--keystore", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "already exists")

	code, stdout, stderr = runCapture(t, "address", "--keystore", path)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, created["address"], decodeResult(t, stdout)["address"])

	code, stdout, _ = runCapture(t, "address", created["hex"])
	require.Equal(t, 0, code)
	require.Equal(t, created["address"], decodeResult(t, stdout)["address"])

	code, _, stderr = runCapture(t, "address")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "either an address or --keystore")
}

func TestCommitmentMatchesEngine(t *testing.T) {
	original := nonceReader
	nonceReader = bytes.NewReader(bytes.Repeat([]byte{0x07}, 32))
	defer func() { nonceReader = original }()

	id := [32]byte{0xAB}
	disputer := crypto.Address{0x01}
	code, stdout, stderr := runCapture(t, "commitment",
		"--escrow", "0xab"+strings.Repeat("00", 31),
		"--disputer", disputer.String())
	require.Equal(t, 0, code, stderr)

	var nonce [32]byte
	copy(nonce[:], bytes.Repeat([]byte{0x07}, 32))
	want := escrow.ComputeCommitment(id, nonce, disputer)
	result := decodeResult(t, stdout)
	require.Equal(t, "0x"+strings.Repeat("07", 32), result["nonce"])
	require.Equal(t, "0x"+hex.EncodeToString(want[:]), result["commitment"])

	code, _, stderr = runCapture(t, "commitment", "--escrow", "0x01", "--disputer", disputer.String())
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "--escrow must be 32 bytes")
}

func TestTokenVerifiesAgainstServer(t *testing.T) {
	t.Setenv(jwtSecretEnv, "cli-secret")
	original := tokenNow
	tokenNow = func() time.Time { return time.Now().Add(-time.Minute) }
	defer func() { tokenNow = original }()

	subject := crypto.Address{0x09}
	code, stdout, stderr := runCapture(t, "token", "--subject", subject.String())
	require.Equal(t, 0, code, stderr)

	auth, err := rpc.NewAuthenticator(rpc.AuthConfig{HMACSecret: "cli-secret", Issuer: "escrowchain"})
	require.NoError(t, err)
	caller, err := auth.Verify(strings.TrimSpace(stdout))
	require.NoError(t, err)
	require.Equal(t, subject, caller)

	t.Setenv(jwtSecretEnv, "")
	code, _, stderr = runCapture(t, "token", "--subject", subject.String())
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "is not set")
}

func TestCallSendsAuthenticatedRequest(t *testing.T) {
	var gotAuth, gotBody, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		if r.URL.Path == "/v1/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NotFound"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	code, stdout, stderr := runCapture(t, "call", "post", "v1/escrows",
		"--rpc", srv.URL, "--token", "abc", "--data", `{"seller":"x"}`)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "Bearer abc", gotAuth)
	require.Equal(t, "POST /v1/escrows", gotPath)
	require.Equal(t, `{"seller":"x"}`, gotBody)
	require.Equal(t, `{"ok":true}`, strings.TrimSpace(stdout))

	code, _, stderr = runCapture(t, "call", "GET", "/v1/missing", "--rpc", srv.URL)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "NotFound")

	code, _, stderr = runCapture(t, "call", "POST", "/v1/escrows", "--rpc", srv.URL, "--data", "{")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "not valid JSON")
}
