package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemInfo(t *testing.T) {
	f := setupAPI(t)

	rec, resp := f.get(t, "/api/v1/system/info")

	require.Equal(t, http.StatusOK, rec.Code)
	var info SystemInfoResponse
	decodeData(t, resp, &info)
	assert.Equal(t, "ZoneLedger API", info.Name)
	assert.Equal(t, "test", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestSystemPing(t *testing.T) {
	f := setupAPI(t)

	rec, resp := f.get(t, "/api/v1/system/ping")

	require.Equal(t, http.StatusOK, rec.Code)
	var ping PingResponse
	decodeData(t, resp, &ping)
	assert.Equal(t, "pong", ping.Message)
}

func TestHealthProbes(t *testing.T) {
	f := setupAPI(t)

	rec, _ := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
