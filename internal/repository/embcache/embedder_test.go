package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeStore struct {
	data map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("key not found")
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, _, _ string) ([]float32, error) {
	e.calls++
	return e.vec, e.err
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.25, -1.5, 3}}
	cache := New(inner, newFakeStore(), nil, zap.NewNop())

	first, err := cache.Embed(context.Background(), "m", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cache.Embed(context.Background(), "m", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	if len(second) != len(first) {
		t.Fatalf("vector length mismatch: %d vs %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("vector[%d] = %f, want %f", i, second[i], first[i])
		}
	}
}

func TestCachedEmbedder_ModelIsPartOfKey(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1}}
	cache := New(inner, newFakeStore(), nil, zap.NewNop())

	if _, err := cache.Embed(context.Background(), "model-a", "same text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Embed(context.Background(), "model-b", "same text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("different models must not share cache entries, got %d inner calls", inner.calls)
	}
}

func TestCachedEmbedder_InnerErrorPropagates(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("boom")}
	cache := New(inner, newFakeStore(), nil, zap.NewNop())

	if _, err := cache.Embed(context.Background(), "m", "text"); err == nil {
		t.Fatal("expected error from inner embedder")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 1e-7}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("vector[%d] = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestBytesToVector_Truncated(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
