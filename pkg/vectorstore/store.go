// Package vectorstore persists course metadata and content chunks in SQLite
// and serves hybrid vector+keyword search over them via sqlite-vec and FTS5.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register the sqlite-vec extension for every connection.
	sqlite_vec.Auto()
}

// DefaultMaxResults caps search results when no limit is given.
const DefaultMaxResults = 5

// Embedder is the subset of embedding generation the store needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Store is the course content index.
type Store struct {
	db         *sql.DB
	embedder   Embedder
	logger     zerolog.Logger
	maxResults int
}

// Config holds store configuration.
type Config struct {
	DBPath     string
	Embedder   Embedder
	Logger     zerolog.Logger
	MaxResults int
}

// New opens (creating if necessary) the store at cfg.DBPath.
func New(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:         db,
		embedder:   cfg.Embedder,
		logger:     cfg.Logger,
		maxResults: cfg.MaxResults,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("db", cfg.DBPath).Msg("Vector store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS courses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE,
			link TEXT,
			instructor TEXT,
			indexed_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS lessons (
			course_id INTEGER NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			link TEXT,
			PRIMARY KEY (course_id, number)
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			course_id INTEGER NOT NULL,
			lesson_number INTEGER,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	dimension := s.embedder.Dimension()
	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS catalog_vectors USING vec0(
			course_title TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimension, dimension)

	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector tables: %w", err)
	}

	return nil
}

// HasCourse reports whether a course title is already indexed.
func (s *Store) HasCourse(title string) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM courses WHERE title = ?", title).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check course: %w", err)
	}
	return count > 0, nil
}

// AddCourse indexes one course: metadata, lessons, content chunks with
// their embeddings, and a catalog vector for fuzzy title resolution.
// Re-adding an existing title replaces its previous index.
func (s *Store) AddCourse(ctx context.Context, course Course, chunks []Chunk) error {
	if course.Title == "" {
		return errors.New("course title is required")
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	chunkVectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	titleVector, err := s.embedder.Embed(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("failed to embed course title: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.deleteCourseTx(tx, course.Title); err != nil {
		return err
	}

	result, err := tx.Exec(
		"INSERT INTO courses (title, link, instructor, indexed_at) VALUES (?, ?, ?, strftime('%s','now'))",
		course.Title, course.Link, course.Instructor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	courseID, _ := result.LastInsertId()

	for _, lesson := range course.Lessons {
		if _, err := tx.Exec(
			"INSERT INTO lessons (course_id, number, title, link) VALUES (?, ?, ?, ?)",
			courseID, lesson.Number, lesson.Title, lesson.Link,
		); err != nil {
			return fmt.Errorf("failed to insert lesson %d: %w", lesson.Number, err)
		}
	}

	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s#%d", course.Title, chunk.Index)

		if _, err := tx.Exec(
			"INSERT INTO chunks (id, course_id, lesson_number, chunk_index, content) VALUES (?, ?, ?, ?, ?)",
			chunkID, courseID, chunk.LessonNumber, chunk.Index, chunk.Content,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunkID, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)",
			chunkID, chunk.Content,
		); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunkID, err)
		}

		vectorJSON, err := json.Marshal(chunkVectors[i])
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := tx.Exec(
			"INSERT INTO chunk_vectors (chunk_id, embedding) VALUES (?, ?)",
			chunkID, string(vectorJSON),
		); err != nil {
			return fmt.Errorf("failed to store embedding for %s: %w", chunkID, err)
		}
	}

	titleJSON, err := json.Marshal(titleVector)
	if err != nil {
		return fmt.Errorf("failed to marshal title embedding: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO catalog_vectors (course_title, embedding) VALUES (?, ?)",
		course.Title, string(titleJSON),
	); err != nil {
		return fmt.Errorf("failed to store catalog vector: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info().
		Str("course", course.Title).
		Int("lessons", len(course.Lessons)).
		Int("chunks", len(chunks)).
		Msg("Course indexed")

	return nil
}

// deleteCourseTx removes a course and everything derived from it.
func (s *Store) deleteCourseTx(tx *sql.Tx, title string) error {
	var courseID int64
	err := tx.QueryRow("SELECT id FROM courses WHERE title = ?", title).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up course: %w", err)
	}

	statements := []struct {
		query string
		arg   interface{}
	}{
		{"DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE course_id = ?)", courseID},
		{"DELETE FROM chunk_vectors WHERE chunk_id IN (SELECT id FROM chunks WHERE course_id = ?)", courseID},
		{"DELETE FROM chunks WHERE course_id = ?", courseID},
		{"DELETE FROM lessons WHERE course_id = ?", courseID},
		{"DELETE FROM catalog_vectors WHERE course_title = ?", title},
		{"DELETE FROM courses WHERE id = ?", courseID},
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt.query, stmt.arg); err != nil {
			return fmt.Errorf("failed to delete course data: %w", err)
		}
	}
	return nil
}

// CourseCount returns the number of indexed courses.
func (s *Store) CourseCount() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM courses").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}

// CourseTitles returns every indexed course title in insertion order.
func (s *Store) CourseTitles() ([]string, error) {
	rows, err := s.db.Query("SELECT title FROM courses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// Clear removes every course and all derived data.
func (s *Store) Clear() error {
	tables := []string{"chunks_fts", "chunk_vectors", "catalog_vectors", "chunks", "lessons", "courses"}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	s.logger.Info().Msg("Vector store cleared")
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
