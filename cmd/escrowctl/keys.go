package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"escrowchain/cmd/internal/passphrase"
	"escrowchain/crypto"
	"escrowchain/native/escrow"
	"escrowchain/rpc"
)

// Overridden in tests.
var readPassphrase = func(confirm bool) (string, error) {
	src := passphrase.NewSource(keystorePass)
	if confirm {
		src.WithConfirmation()
	}
	return src.Get()
}

var nonceReader io.Reader = rand.Reader

var tokenNow = time.Now

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	path := fs.String("keystore", "", "output path for the encrypted keystore")
	force := fs.Bool("force", false, "overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*path) == "" {
		return fail(stderr, "--keystore is required")
	}
	if _, err := os.Stat(*path); err == nil && !*force {
		return fail(stderr, "%s already exists; pass --force to overwrite", *path)
	}
	pass, err := readPassphrase(true)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	addr, err := crypto.GenerateKeystore(*path, pass)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	return printResult(stdout, map[string]string{
		"address":  addr.String(),
		"hex":      addr.Hex(),
		"keystore": *path,
	})
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	path := fs.String("keystore", "", "read the address from an encrypted keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var addr crypto.Address
	switch {
	case *path != "" && fs.NArg() == 0:
		pass, err := readPassphrase(false)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		key, err := crypto.LoadFromKeystore(*path, pass)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		addr = key.Address()
	case *path == "" && fs.NArg() == 1:
		parsed, err := crypto.ParseAddress(fs.Arg(0))
		if err != nil {
			return fail(stderr, "%v", err)
		}
		addr = parsed
	default:
		return fail(stderr, "provide either an address or --keystore")
	}
	return printResult(stdout, map[string]string{"address": addr.String(), "hex": addr.Hex()})
}

func runCommitment(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("commitment", stderr)
	escrowID := fs.String("escrow", "", "0x-prefixed escrow id")
	disputer := fs.String("disputer", "", "address that will commit and reveal")
	nonceHex := fs.String("nonce", "", "32 byte hex nonce; random when omitted")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := decodeHash("--escrow", *escrowID)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	addr, err := crypto.ParseAddress(*disputer)
	if err != nil {
		return fail(stderr, "--disputer: %v", err)
	}
	var nonce [32]byte
	if *nonceHex == "" {
		if _, err := io.ReadFull(nonceReader, nonce[:]); err != nil {
			return fail(stderr, "nonce: %v", err)
		}
	} else if nonce, err = decodeHash("--nonce", *nonceHex); err != nil {
		return fail(stderr, "%v", err)
	}
	commitment := escrow.ComputeCommitment(id, nonce, addr)
	return printResult(stdout, map[string]string{
		"escrowId":   "0x" + hex.EncodeToString(id[:]),
		"disputer":   addr.String(),
		"nonce":      "0x" + hex.EncodeToString(nonce[:]),
		"commitment": "0x" + hex.EncodeToString(commitment[:]),
	})
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	subject := fs.String("subject", "", "caller address the token authenticates")
	issuer := fs.String("issuer", "escrowchain", "token issuer; must match rpc.JWTIssuer")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	secretEnv := fs.String("secret-env", jwtSecretEnv, "environment variable holding the HMAC secret")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := crypto.ParseAddress(*subject)
	if err != nil {
		return fail(stderr, "--subject: %v", err)
	}
	secret := os.Getenv(*secretEnv)
	if strings.TrimSpace(secret) == "" {
		return fail(stderr, "%s is not set", *secretEnv)
	}
	token, err := rpc.IssueToken(secret, *issuer, addr, *ttl, tokenNow())
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func decodeHash(field, raw string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(out) {
		return out, fmt.Errorf("%s must be 32 bytes of hex", field)
	}
	copy(out[:], decoded)
	return out, nil
}
