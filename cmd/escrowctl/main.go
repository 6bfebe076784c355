package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	defaultRPCURL = "http://127.0.0.1:8645"
	rpcURLEnv     = "ESCROW_RPC_URL"
	rpcTokenEnv   = "ESCROW_RPC_TOKEN"
	keystorePass  = "ESCROW_KEYSTORE_PASS"
	jwtSecretEnv  = "ESCROW_JWT_SECRET"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "commitment":
		return runCommitment(args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "call":
		return runCall(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: escrowctl <command> [flags]",
		"",
		"Commands:",
		"  keygen      --keystore <path>                      create an encrypted key and print its address",
		"  address     <address> | --keystore <path>          print the bech32 and hex forms of an address",
		"  commitment  --escrow <id> --disputer <address>     derive a dispute commitment and its nonce",
		"  token       --subject <address> [--ttl 1h]         mint an RPC bearer token from " + jwtSecretEnv,
		"  call        <METHOD> <path> [--data <json>]        send an authenticated request to escrowd",
		"",
		"Environment:",
		"  " + rpcURLEnv + "      escrowd base URL (default " + defaultRPCURL + ")",
		"  " + rpcTokenEnv + "    bearer token used by call",
		"  " + keystorePass + " keystore passphrase; prompts when unset",
	}, "\n")
}

func fail(stderr io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return 1
}
