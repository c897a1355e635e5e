package cache

import "testing"

func TestEmbeddingKeyStableAndDistinct(t *testing.T) {
	k1 := EmbeddingKey("披锋问题")
	k2 := EmbeddingKey("披锋问题")
	if k1 != k2 {
		t.Fatalf("expected stable key, got %q and %q", k1, k2)
	}
	if k1 == EmbeddingKey("其他问题") {
		t.Fatalf("expected distinct keys for distinct text")
	}
	if len(k1) != 32 {
		t.Fatalf("expected 32 hex chars (md5), got %d", len(k1))
	}
}

func TestSearchKeyStableAndModeSensitive(t *testing.T) {
	filters := map[string]string{"material": "HIPS"}
	k1 := SearchKey("q", "HYBRID", filters, 10)
	k2 := SearchKey("q", "HYBRID", filters, 10)
	if k1 != k2 {
		t.Fatalf("expected same key for identical inputs")
	}
	if k1 == SearchKey("q", "SEMANTIC", filters, 10) {
		t.Fatalf("expected distinct keys for distinct mode")
	}
}

func TestRerankKeySortedDocsMatters(t *testing.T) {
	k1 := RerankKey("q", []string{"a", "b"})
	k2 := RerankKey("q", []string{"b", "a"})
	if k1 == k2 {
		t.Fatalf("expected caller-sorted doc ids to change the key when order differs")
	}
}
