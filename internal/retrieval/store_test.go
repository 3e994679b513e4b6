package retrieval

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database with the doc_chunks table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE doc_chunks (
			id TEXT PRIMARY KEY,
			source_document TEXT NOT NULL,
			page INTEGER NOT NULL DEFAULT 0,
			chunk_text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func chunkRecord(id, doc string, page int, vec []float32) Record {
	return Record{
		ID:             id,
		SourceDocument: doc,
		Page:           page,
		ChunkText:      "chunk " + id,
		Embedding:      vec,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestInsertAndSearch(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	vec := makeTestVector(768, 0.1)
	if err := s.Insert([]Record{chunkRecord("c1", "warranty.pdf", 2, vec)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(vec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", results[0].Score)
	}
	if results[0].ID != "c1" || results[0].SourceDocument != "warranty.pdf" || results[0].Page != 2 {
		t.Errorf("record = %+v, want c1/warranty.pdf/2", results[0].Record)
	}
}

func TestSearchTopKOrdered(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, chunkRecord(
			fmt.Sprintf("c%d", i), "manual.pdf", i, makeTestVector(64, float32(i)*0.3)))
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	query := makeTestVector(64, 0.0) // closest to c0, then c1, ...
	results, err := s.Search(query, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score: %f before %f", results[i-1].Score, results[i].Score)
		}
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	results, err := s.Search(makeTestVector(64, 0.1), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("got %v, want nil", results)
	}
}

func TestSearchZeroVector(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	if err := s.Insert([]Record{chunkRecord("c1", "doc.txt", 0, makeTestVector(8, 0.5))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(make([]float32, 8), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("got %v, want nil for zero query vector", results)
	}
}

// TestSearchTopKZero verifies a non-positive K returns nothing instead of
// panicking on the candidate heap when the index has rows.
func TestSearchTopKZero(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	if err := s.Insert([]Record{chunkRecord("c1", "doc.txt", 0, makeTestVector(8, 0.5))}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for _, topK := range []int{0, -1} {
		results, err := s.Search(makeTestVector(8, 0.5), topK)
		if err != nil {
			t.Fatalf("Search(topK=%d): %v", topK, err)
		}
		if results != nil {
			t.Errorf("Search(topK=%d) = %v, want nil", topK, results)
		}
	}
}

func TestDeleteBySource(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	records := []Record{
		chunkRecord("c1", "warranty.pdf", 1, makeTestVector(8, 0.1)),
		chunkRecord("c2", "warranty.pdf", 2, makeTestVector(8, 0.2)),
		chunkRecord("c3", "manual.pdf", 1, makeTestVector(8, 0.3)),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := s.DeleteBySource("warranty.pdf")
	if err != nil {
		t.Fatalf("DeleteBySource: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d chunks, want 2", n)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestDocuments(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	records := []Record{
		chunkRecord("c1", "warranty.pdf", 1, makeTestVector(8, 0.1)),
		chunkRecord("c2", "warranty.pdf", 2, makeTestVector(8, 0.2)),
		chunkRecord("c3", "manual.pdf", 1, makeTestVector(8, 0.3)),
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	docs, err := s.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0] != "manual.pdf" || docs[1] != "warranty.pdf" {
		t.Errorf("docs = %v, want [manual.pdf warranty.pdf]", docs)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	vec := makeTestVector(768, 0.42)
	decoded, err := decodeFloat32s(encodeFloat32s(vec))
	if err != nil {
		t.Fatalf("decodeFloat32s: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("length mismatch: %d != %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("value mismatch at %d: %f != %f", i, decoded[i], vec[i])
		}
	}
}

func TestDecodeCorruptBlob(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for blob length not divisible by 4")
	}
}
