package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

func localTestConfig(endpoint string) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Provider:          config.EmbeddingProviderLocal,
		Model:             "local-e5-small",
		Endpoint:          endpoint,
		Dimension:         3,
		ChunkTokens:       500,
		ChunkTokenOverlap: 50,
		ChunkChars:        2000,
		ChunkCharOverlap:  200,
		BatchSize:         64,
		Timeout:           5 * time.Second,
	}
}

func TestLocalService_EmbedBatch(t *testing.T) {
	var gotPath string
	var gotReq localEmbedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(localEmbedResponse{
			Embeddings: [][]float32{{1, 2, 3}, {4, 5, 6}},
		})
	}))
	defer server.Close()

	svc := newLocalService(localTestConfig(server.URL))
	vectors, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	if gotPath != "/embed" {
		t.Errorf("path = %q, want /embed", gotPath)
	}
	if len(gotReq.Input) != 2 || gotReq.Dimensions != 3 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][2] != 6 {
		t.Errorf("vectors = %v", vectors)
	}
}

func TestLocalService_EmbedEmptyInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be called for empty input")
	}))
	defer server.Close()

	svc := newLocalService(localTestConfig(server.URL))

	vec, err := svc.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vec != nil {
		t.Errorf("Embed(whitespace) = %v, want nil", vec)
	}
}

func TestLocalService_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(localEmbedResponse{
			Embeddings: [][]float32{{1, 2, 3}},
		})
	}))
	defer server.Close()

	svc := newLocalService(localTestConfig(server.URL))
	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for count mismatch")
	}
	if !noteerr.IsKind(err, noteerr.KindEmbeddingFailure) {
		t.Errorf("error kind = %v, want embedding_failure", noteerr.KindOf(err))
	}
}

func TestLocalService_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(localEmbedResponse{
			Embeddings: [][]float32{{1, 2}},
		})
	}))
	defer server.Close()

	svc := newLocalService(localTestConfig(server.URL))
	_, err := svc.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
	if !noteerr.IsKind(err, noteerr.KindEmbeddingFailure) {
		t.Errorf("error kind = %v, want embedding_failure", noteerr.KindOf(err))
	}
}

func TestLocalService_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusConflict)
	}))
	defer server.Close()

	svc := newLocalService(localTestConfig(server.URL))
	_, err := svc.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error for server failure")
	}

	var ne *noteerr.Error
	if !errors.As(err, &ne) {
		t.Fatalf("error is not a noteerr.Error: %v", err)
	}
	if ne.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", ne.StatusCode)
	}
}
