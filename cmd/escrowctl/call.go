package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

func runCall(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return fail(stderr, "usage: escrowctl call <METHOD> <path> [--data <json>]")
	}
	method := strings.ToUpper(strings.TrimSpace(args[0]))
	path := strings.TrimSpace(args[1])
	fs := newFlagSet("call", stderr)
	data := fs.String("data", "", "JSON request body")
	endpoint := fs.String("rpc", envOr(rpcURLEnv, defaultRPCURL), "escrowd base URL")
	token := fs.String("token", os.Getenv(rpcTokenEnv), "bearer token")
	if err := fs.Parse(args[2:]); err != nil {
		return 1
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if *data != "" {
		if !json.Valid([]byte(*data)) {
			return fail(stderr, "--data is not valid JSON")
		}
		body = strings.NewReader(*data)
	}
	req, err := http.NewRequest(method, strings.TrimRight(*endpoint, "/")+path, body)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fail(stderr, "request to %s failed: %v", *endpoint, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fail(stderr, "read response: %v", err)
	}

	out := stdout
	if resp.StatusCode >= http.StatusBadRequest {
		out = stderr
	}
	writePayload(out, payload)
	if resp.StatusCode >= http.StatusBadRequest {
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func printResult(w io.Writer, v interface{}) int {
	encoded, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	writePayload(w, encoded)
	return 0
}

// writePayload indents JSON for terminals and passes it through compact
// otherwise, so output stays pipeable.
func writePayload(w io.Writer, payload []byte) {
	payload = bytes.TrimSpace(payload)
	if isTerminal(w) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, payload, "", "  "); err == nil {
			payload = indented.Bytes()
		}
	}
	fmt.Fprintln(w, string(payload))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
