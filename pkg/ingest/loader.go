package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/syllabot/syllabot/pkg/vectorstore"
)

// Index is the subset of the vector store the loader writes to.
type Index interface {
	HasCourse(title string) (bool, error)
	AddCourse(ctx context.Context, course vectorstore.Course, chunks []vectorstore.Chunk) error
	Clear() error
}

// Loader ingests course documents from a folder into the index.
type Loader struct {
	index  Index
	parser *Parser
	logger zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(index Index, parser *Parser, logger zerolog.Logger) *Loader {
	return &Loader{index: index, parser: parser, logger: logger}
}

// LoadFolder ingests every .txt and .md document in path. Courses already
// present in the index are skipped unless clearExisting wipes the index
// first. It returns the number of courses and chunks added.
func (l *Loader) LoadFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read folder %s: %w", path, err)
	}

	if clearExisting {
		if err := l.index.Clear(); err != nil {
			return 0, 0, fmt.Errorf("failed to clear index: %w", err)
		}
	}

	coursesAdded, chunksAdded := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !isCourseDocument(entry.Name()) {
			continue
		}

		docPath := filepath.Join(path, entry.Name())
		course, chunks, err := l.parser.ParseFile(docPath)
		if err != nil {
			l.logger.Error().Err(err).Str("file", entry.Name()).Msg("Failed to parse course document")
			continue
		}

		exists, err := l.index.HasCourse(course.Title)
		if err != nil {
			return coursesAdded, chunksAdded, err
		}
		if exists {
			l.logger.Debug().Str("course", course.Title).Msg("Course already indexed, skipping")
			continue
		}

		if err := l.index.AddCourse(ctx, course, chunks); err != nil {
			l.logger.Error().Err(err).Str("course", course.Title).Msg("Failed to index course")
			continue
		}

		coursesAdded++
		chunksAdded += len(chunks)
	}

	l.logger.Info().
		Str("folder", path).
		Int("courses", coursesAdded).
		Int("chunks", chunksAdded).
		Msg("Folder ingested")

	return coursesAdded, chunksAdded, nil
}

func isCourseDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".md"
}
