package collaborative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
)

func TestClient_RecommendParsesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recommend", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"product_id": "p1", "score": 0.9},
				{"product_id": "p2", "score": 0.5},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	got, err := c.Recommend(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].ProductID)
	require.Equal(t, 0.9, got[0].Score)
}

func TestClient_RecommendTruncatesToN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"product_id": "p1", "score": 0.9},
				{"product_id": "p2", "score": 0.5},
				{"product_id": "p3", "score": 0.1},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	got, err := c.Recommend(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestClient_RecommendNon200IsRemoteRecommenderFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Recommend(context.Background(), "u1", 5)
	require.ErrorIs(t, err, domain.ErrRemoteRecommenderFailed)
}

func TestClient_RecordEventPostsAndReturnsAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body eventRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "u1", body.UserID)
		require.Equal(t, "purchase", body.EventType)
		_ = json.NewEncoder(w).Encode(eventResponse{Ack: "ack-1"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	ack, err := c.RecordEvent(context.Background(), "u1", domain.EventPurchase, "p1", 19.99)
	require.NoError(t, err)
	require.Equal(t, "ack-1", ack)
}
