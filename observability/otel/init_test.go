package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer x ,bad, =skip,team=escrow")
	require.Equal(t, map[string]string{
		"authorization": "Bearer x",
		"team":          "escrow",
	}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "escrowd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRejectsSampleRatio(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "escrowd", Traces: true, SampleRatio: 1.5})
	require.ErrorContains(t, err, "sample ratio")
}

func TestInitStartsExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "escrowd",
		Endpoint:    "127.0.0.1:1",
		Insecure:    true,
		Traces:      true,
		Metrics:     true,
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// Nothing listens on the endpoint; shutdown must still return.
	_ = shutdown(ctx)
}
