package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,x-tenant=lockers,,broken,=empty")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "lockers",
	}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lockersd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.NotNil(t, Tracer("lockers"))
}

func TestBuildResourceTagsNetwork(t *testing.T) {
	res, err := buildResource(Config{ServiceName: "lockersd", Environment: "test", Network: "regtest"})
	require.NoError(t, err)
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "bitcoin.network" {
			found = kv.Value.AsString() == "regtest"
		}
	}
	if !found {
		t.Fatalf("bitcoin.network attribute missing from %v", res.Attributes())
	}
}
