package statsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rillscope/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", "secret", 2*time.Second)
}

func TestClient_GetDetailedStats(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathDetailedStats, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{
			"bandwidth": {"upload": 6000, "download": 2000},
			"video": {"quality": 4},
			"connection": {"rtt": 50, "jitter": 10, "packetLoss": 0.01, "state": "connected"}
		}`))
	})

	snap, err := client.GetDetailedStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8000.0, snap.TotalBandwidth())
	assert.Equal(t, 4, snap.VideoQuality())
	assert.False(t, snap.HasAudio())
	assert.Equal(t, "connected", string(snap.State()))
}

func TestClient_GetRoomStats(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rooms/room%201/stats", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{
			"participantCount": 2,
			"speakingCount": 1,
			"videoCount": 0,
			"participants": [{"id": "p1", "name": null, "quality": 4, "latency": 45}]
		}`))
	})

	ps, err := client.GetRoomStats(context.Background(), "room 1")
	require.NoError(t, err)
	assert.Equal(t, 2, ps.ParticipantCount)
	require.Len(t, ps.Participants, 1)
	assert.Equal(t, "Unknown", ps.Participants[0].DisplayName())
}

func TestClient_GetHistoricalAnalytics(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rooms/room-1/analytics", r.URL.Path)
		assert.Equal(t, "24h", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(`{"peakParticipants": 12, "dataTransferred": 12.345}`))
	})

	h, err := client.GetHistoricalAnalytics(context.Background(), "room-1", domain.Range24h)
	require.NoError(t, err)
	assert.Equal(t, 12, h.Peak())
	assert.Nil(t, h.SessionStart)
}

func TestClient_StatusError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		temporary bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"throttled", http.StatusTooManyRequests, true},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := client.GetDetailedStats(context.Background())
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "nope", se.Body)
			assert.Equal(t, tt.temporary, se.Temporary())
		})
	}
}

func TestClient_DecodeError(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.GetRoomStats(context.Background(), "room-1")
	assert.ErrorContains(t, err, "decode response")
}

func TestClient_Moderation(t *testing.T) {
	var mu sync.Mutex
	var got []string
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		got = append(got, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Mute(context.Background(), "room-1", "p1"))
	require.NoError(t, client.Kick(context.Background(), "room-1", "p2"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/api/v1/rooms/room-1/participants/p1/mute",
		"/api/v1/rooms/room-1/participants/p2/kick",
	}, got)
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GetDetailedStats(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
