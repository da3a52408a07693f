package util

import "testing"

func TestIDGeneratorIsUniqueAndNonZero(t *testing.T) {
	gen, err := NewIDGenerator(1)
	if err != nil {
		t.Fatalf("NewIDGenerator() error = %v", err)
	}
	seen := make(map[uint64]bool)
	for i := 0; i < 10000; i++ {
		id := gen.Next()
		if id == 0 {
			t.Fatal("generated the void id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestIDGeneratorRejectsBadNode(t *testing.T) {
	if _, err := NewIDGenerator(5000); err == nil {
		t.Fatal("expected error for node out of range")
	}
}
