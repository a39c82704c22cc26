package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-cli/internal/api"
	"github.com/sells-group/provider-cli/internal/oracle"
)

type cannedOracle struct{}

func (cannedOracle) Complete(context.Context, oracle.Prompt) (string, error) {
	return "ok", nil
}

func TestServerOptions_ChatRequiresOracle(t *testing.T) {
	testConfig(t)

	disabled := serverOptions(&appEnv{Oracle: oracle.Disabled{}})
	assert.Len(t, disabled, 1)

	enabled := serverOptions(&appEnv{Oracle: cannedOracle{}})
	assert.Len(t, enabled, 2)
}

func TestServerOptions_DisabledOracleChatUnavailable(t *testing.T) {
	testConfig(t)

	opts := append(serverOptions(&appEnv{Oracle: oracle.Disabled{}}), api.WithRegistry(prometheus.NewRegistry()))
	srv := httptest.NewServer(api.New(nil, opts...).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/jobs/any/chat", "application/json", strings.NewReader(`{"question":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
