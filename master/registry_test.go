package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndList(t *testing.T) {
	reg := NewRegistry(time.Minute)
	defer reg.Stop()

	id := reg.Register(WorldInfo{Name: "oakhill", Address: "localhost:4000", MaxPlayers: 32})
	require.NotEmpty(t, id)

	worlds := reg.List()
	require.Len(t, worlds, 1)
	assert.Equal(t, id, worlds[0].ID)
	assert.Equal(t, "oakhill", worlds[0].Name)
}

func TestHeartbeatUpdatesCounts(t *testing.T) {
	reg := NewRegistry(time.Minute)
	defer reg.Stop()

	id := reg.Register(WorldInfo{Name: "oakhill", Address: "localhost:4000"})
	assert.True(t, reg.Heartbeat(id, 7))
	assert.Equal(t, 7, reg.List()[0].Squirrels)

	assert.False(t, reg.Heartbeat("unknown", 1))
}

func TestRegisterHandler(t *testing.T) {
	reg := NewRegistry(time.Minute)
	defer reg.Stop()

	body, _ := json.Marshal(registerRequest{Name: "oakhill", Address: "localhost:4000"})
	req := httptest.NewRequest(http.MethodPost, "/worlds/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handleRegisterWorld(reg)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Len(t, reg.List(), 1)
}

func TestRegisterHandlerRejectsMissingFields(t *testing.T) {
	reg := NewRegistry(time.Minute)
	defer reg.Stop()

	body, _ := json.Marshal(registerRequest{Name: "oakhill"})
	req := httptest.NewRequest(http.MethodPost, "/worlds/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handleRegisterWorld(reg)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, reg.List())
}

func TestHeartbeatHandlerUnknownWorld(t *testing.T) {
	reg := NewRegistry(time.Minute)
	defer reg.Stop()

	body, _ := json.Marshal(heartbeatRequest{ID: "missing"})
	req := httptest.NewRequest(http.MethodPost, "/worlds/heartbeat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handleWorldHeartbeat(reg)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHandler(t *testing.T) {
	reg := NewRegistry(time.Minute)
	defer reg.Stop()
	reg.Register(WorldInfo{Name: "oakhill", Address: "localhost:4000"})

	req := httptest.NewRequest(http.MethodGet, "/worlds", nil)
	rec := httptest.NewRecorder()
	handleListWorlds(reg)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var worlds []WorldInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &worlds))
	assert.Len(t, worlds, 1)
}
