package database

import (
	"math"
	"testing"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestCanonicalIndex_BuildAndSearch(t *testing.T) {
	idx := NewCanonicalIndex()
	idx.Build([]CanonicalEmbedding{
		{EnrollmentNo: "E001", Embedding: unit(8, 0)},
		{EnrollmentNo: "E002", Embedding: unit(8, 1)},
		{EnrollmentNo: "E003", Embedding: unit(8, 2)},
		{EnrollmentNo: "E004"}, // no vector, skipped
	})

	if idx.Count() != 3 {
		t.Fatalf("expected 3 indexed, got %d", idx.Count())
	}

	matches, err := idx.Search(unit(8, 1), 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) == 0 || matches[0].EnrollmentNo != "E002" {
		t.Fatalf("expected E002 first, got %+v", matches)
	}
	if math.Abs(matches[0].Similarity-1) > 1e-6 {
		t.Errorf("expected similarity 1, got %f", matches[0].Similarity)
	}
}

func TestCanonicalIndex_AddReplaceDelete(t *testing.T) {
	idx := NewCanonicalIndex()

	if _, err := idx.Search(unit(4, 0), 1); err == nil {
		t.Error("expected error searching an empty index")
	}

	idx.Add("E001", unit(4, 0))
	idx.Add("E002", unit(4, 1))

	// Replace E001 so it now points along axis 2.
	idx.Add("E001", unit(4, 2))
	matches, err := idx.Search(unit(4, 2), 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if matches[0].EnrollmentNo != "E001" || math.Abs(matches[0].Similarity-1) > 1e-6 {
		t.Errorf("expected replaced E001 with similarity 1, got %+v", matches[0])
	}

	idx.Delete("E001")
	idx.Delete("missing")
	if idx.Count() != 1 {
		t.Fatalf("expected 1 after delete, got %d", idx.Count())
	}
	matches, err = idx.Search(unit(4, 2), 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, m := range matches {
		if m.EnrollmentNo == "E001" {
			t.Error("deleted student returned by search")
		}
	}
}

func TestClassAttendanceSummary_Percentage(t *testing.T) {
	if p := (ClassAttendanceSummary{TotalSessions: 0}).Percentage(); p != nil {
		t.Errorf("expected nil percentage without sessions, got %v", *p)
	}
	p := (ClassAttendanceSummary{Attended: 2, TotalSessions: 3}).Percentage()
	if p == nil || *p != 66.67 {
		t.Errorf("expected 66.67, got %v", p)
	}
}
