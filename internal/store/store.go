// Package store keeps the input library: question papers and solution
// keys an examiner wants to reuse across evaluations. Evaluation results
// are never stored; every run is stateless.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gradepipe/gradepipe/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS question_papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		body TEXT NOT NULL,
		body_hash TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS solution_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		body TEXT NOT NULL,
		body_hash TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func bodyHash(body string) string {
	h := sha256.Sum256([]byte(body))
	return hex.EncodeToString(h[:])
}

// SavePaper stores a question paper, deduplicating on content: saving
// the same body twice returns the existing row's id.
func (s *Store) SavePaper(name, body string) (int64, error) {
	return s.save("question_papers", name, body)
}

// SaveKey stores a solution key with the same dedup behavior.
func (s *Store) SaveKey(name, body string) (int64, error) {
	return s.save("solution_keys", name, body)
}

func (s *Store) save(table, name, body string) (int64, error) {
	hash := bodyHash(body)

	var id int64
	err := s.db.QueryRow(
		fmt.Sprintf("SELECT id FROM %s WHERE body_hash = ?", table), hash,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("check existing %s: %w", table, err)
	}

	res, err := s.db.Exec(
		fmt.Sprintf("INSERT INTO %s (name, body, body_hash, created_at) VALUES (?, ?, ?, ?)", table),
		name, body, hash, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// GetPaper fetches one stored question paper.
func (s *Store) GetPaper(id int64) (model.QuestionPaper, error) {
	var p model.QuestionPaper
	err := s.db.QueryRow(
		"SELECT id, name, body, created_at FROM question_papers WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Body, &p.CreatedAt)
	if err != nil {
		return model.QuestionPaper{}, fmt.Errorf("get paper %d: %w", id, err)
	}
	return p, nil
}

// GetKey fetches one stored solution key.
func (s *Store) GetKey(id int64) (model.SolutionKey, error) {
	var k model.SolutionKey
	err := s.db.QueryRow(
		"SELECT id, name, body, created_at FROM solution_keys WHERE id = ?", id,
	).Scan(&k.ID, &k.Name, &k.Body, &k.CreatedAt)
	if err != nil {
		return model.SolutionKey{}, fmt.Errorf("get key %d: %w", id, err)
	}
	return k, nil
}

// ListPapers returns all stored question papers, newest first.
func (s *Store) ListPapers() ([]model.QuestionPaper, error) {
	rows, err := s.db.Query(
		"SELECT id, name, body, created_at FROM question_papers ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var papers []model.QuestionPaper
	for rows.Next() {
		var p model.QuestionPaper
		if err := rows.Scan(&p.ID, &p.Name, &p.Body, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// ListKeys returns all stored solution keys, newest first.
func (s *Store) ListKeys() ([]model.SolutionKey, error) {
	rows, err := s.db.Query(
		"SELECT id, name, body, created_at FROM solution_keys ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []model.SolutionKey
	for rows.Next() {
		var k model.SolutionKey
		if err := rows.Scan(&k.ID, &k.Name, &k.Body, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
