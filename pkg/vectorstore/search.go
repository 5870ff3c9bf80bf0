package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrCourseNotFound reports that no indexed course matches a requested name.
var ErrCourseNotFound = errors.New("course not found")

// Candidate pool size per search arm before merging and filtering.
const candidateLimit = 200

// Hybrid score weights, vector-dominant like the underlying content.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// ResolveCourseName maps a possibly partial course name to the best
// matching indexed title using the catalog vectors.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vector, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to embed course name: %w", err)
	}
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embedding: %w", err)
	}

	var title string
	err = s.db.QueryRowContext(ctx, `
		SELECT course_title
		FROM catalog_vectors
		ORDER BY vec_distance_cosine(embedding, ?) ASC
		LIMIT 1
	`, string(vectorJSON)).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve course name: %w", err)
	}

	return title, nil
}

// Search performs hybrid vector+keyword search over course chunks, with
// optional course and lesson filters. Results are ordered by combined
// relevance and capped at opts.Limit (or the store default).
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if query == "" {
		return []SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	var courseID *int64
	if opts.CourseName != "" {
		title, err := s.ResolveCourseName(ctx, opts.CourseName)
		if err != nil {
			return nil, err
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, "SELECT id FROM courses WHERE title = ?", title).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to look up course %q: %w", title, err)
		}
		courseID = &id
	}

	vectorScores, err := s.vectorSearch(ctx, query)
	if err != nil {
		// Degrade to keyword-only rather than failing the query.
		s.logger.Warn().Err(err).Msg("Vector search failed, using keyword only")
		vectorScores = nil
	}
	keywordScores, err := s.keywordSearch(ctx, query)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Keyword search failed, using vector only")
		keywordScores = nil
	}
	if vectorScores == nil && keywordScores == nil {
		return nil, errors.New("both search arms failed")
	}

	merged := mergeScores(vectorScores, keywordScores)

	results := make([]SearchResult, 0, limit)
	for _, m := range merged {
		if len(results) == limit {
			break
		}

		detail, err := s.chunkDetail(ctx, m.chunkID)
		if err != nil {
			s.logger.Warn().Err(err).Str("chunk_id", m.chunkID).Msg("Failed to fetch chunk detail")
			continue
		}
		if courseID != nil && detail.courseID != *courseID {
			continue
		}
		if opts.LessonNumber != nil && (detail.lessonNumber == nil || *detail.lessonNumber != *opts.LessonNumber) {
			continue
		}

		results = append(results, SearchResult{
			ChunkID:      m.chunkID,
			CourseTitle:  detail.courseTitle,
			LessonNumber: detail.lessonNumber,
			Content:      detail.content,
			Score:        m.score,
		})
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

type scoredChunk struct {
	chunkID string
	score   float64
}

// vectorSearch returns cosine similarity per chunk, best first.
func (s *Store) vectorSearch(ctx context.Context, query string) (map[string]float64, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, vec_distance_cosine(embedding, ?) AS distance
		FROM chunk_vectors
		ORDER BY distance ASC
		LIMIT ?
	`, string(vectorJSON), candidateLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var chunkID string
		var distance float64
		if err := rows.Scan(&chunkID, &distance); err != nil {
			return nil, err
		}
		scores[chunkID] = 1.0 - distance
	}
	return scores, rows.Err()
}

// keywordSearch returns BM25 scores per chunk via FTS5.
func (s *Store) keywordSearch(ctx context.Context, query string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, query, candidateLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, err
		}
		// BM25 scores come out negative; flip them.
		scores[chunkID] = -score
	}
	return scores, rows.Err()
}

// mergeScores combines both arms into one descending ranking. Vector
// similarity is mapped from [-1,1] to [0,1]; keyword scores are normalized
// against the best match.
func mergeScores(vectorScores, keywordScores map[string]float64) []scoredChunk {
	var maxKeyword float64
	for _, score := range keywordScores {
		if score > maxKeyword {
			maxKeyword = score
		}
	}

	ids := make(map[string]bool)
	for id := range vectorScores {
		ids[id] = true
	}
	for id := range keywordScores {
		ids[id] = true
	}

	merged := make([]scoredChunk, 0, len(ids))
	for id := range ids {
		var combined float64
		if similarity, ok := vectorScores[id]; ok {
			combined += ((similarity + 1) / 2) * vectorWeight
		}
		if score, ok := keywordScores[id]; ok && maxKeyword > 0 {
			combined += (score / maxKeyword) * keywordWeight
		}
		merged = append(merged, scoredChunk{chunkID: id, score: combined})
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].chunkID < merged[j].chunkID
	})

	return merged
}

type chunkDetailRow struct {
	courseID     int64
	courseTitle  string
	lessonNumber *int
	content      string
}

func (s *Store) chunkDetail(ctx context.Context, chunkID string) (chunkDetailRow, error) {
	var detail chunkDetailRow
	var lessonNumber sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT c.course_id, co.title, c.lesson_number, c.content
		FROM chunks c
		JOIN courses co ON co.id = c.course_id
		WHERE c.id = ?
	`, chunkID).Scan(&detail.courseID, &detail.courseTitle, &lessonNumber, &detail.content)
	if err != nil {
		return chunkDetailRow{}, err
	}

	if lessonNumber.Valid {
		n := int(lessonNumber.Int64)
		detail.lessonNumber = &n
	}
	return detail, nil
}

// Outline resolves a course name and returns its full metadata including
// the ordered lesson list.
func (s *Store) Outline(ctx context.Context, courseName string) (Course, error) {
	title, err := s.ResolveCourseName(ctx, courseName)
	if err != nil {
		return Course{}, err
	}

	var course Course
	var courseID int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id, title, link, instructor FROM courses WHERE title = ?", title,
	).Scan(&courseID, &course.Title, &course.Link, &course.Instructor)
	if err != nil {
		return Course{}, fmt.Errorf("failed to load course %q: %w", title, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT number, title, link FROM lessons WHERE course_id = ? ORDER BY number", courseID,
	)
	if err != nil {
		return Course{}, fmt.Errorf("failed to load lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lesson Lesson
		if err := rows.Scan(&lesson.Number, &lesson.Title, &lesson.Link); err != nil {
			return Course{}, err
		}
		course.Lessons = append(course.Lessons, lesson)
	}

	return course, rows.Err()
}

// LessonLink returns the link of one lesson in a course, or empty when the
// lesson has none.
func (s *Store) LessonLink(courseTitle string, lessonNumber int) (string, error) {
	var link sql.NullString
	err := s.db.QueryRow(`
		SELECT l.link
		FROM lessons l
		JOIN courses c ON c.id = l.course_id
		WHERE c.title = ? AND l.number = ?
	`, courseTitle, lessonNumber).Scan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up lesson link: %w", err)
	}
	return link.String, nil
}
