// Package ingest reads course documents, splits them into overlapping
// chunks, and feeds them into the vector store. It also keeps the index
// fresh via a filesystem watcher and a periodic reindex schedule.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/syllabot/syllabot/pkg/vectorstore"
)

var lessonHeader = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// Parser turns a course document into course metadata and content chunks.
//
// Documents start with a metadata header:
//
//	Course Title: ...
//	Course Link: ...
//	Course Instructor: ...
//
// followed by lesson sections, each opened by a "Lesson N: Title" line and
// an optional "Lesson Link:" line.
type Parser struct {
	chunker Chunker
}

// NewParser creates a parser using the given chunker.
func NewParser(chunker Chunker) *Parser {
	return &Parser{chunker: chunker}
}

// ParseFile reads and parses one course document.
func (p *Parser) ParseFile(path string) (vectorstore.Course, []vectorstore.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return vectorstore.Course{}, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return vectorstore.Course{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	course, body := parseHeader(lines)
	if course.Title == "" {
		// Fall back to the filename so the document is still indexable.
		course.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	chunks := p.parseLessons(&course, body)
	return course, chunks, nil
}

// parseHeader consumes the metadata lines and returns the remaining body.
func parseHeader(lines []string) (vectorstore.Course, []string) {
	var course vectorstore.Course

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "Course Title:"):
			course.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
		case strings.HasPrefix(line, "Course Link:"):
			course.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		case strings.HasPrefix(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
		case line == "":
			continue
		default:
			return course, lines[i:]
		}
	}
	return course, nil
}

// parseLessons walks the body, collecting lesson metadata into course and
// returning the chunked content. Each chunk carries a context prefix naming
// its course and lesson so it stays meaningful in isolation.
func (p *Parser) parseLessons(course *vectorstore.Course, lines []string) []vectorstore.Chunk {
	var chunks []vectorstore.Chunk
	var buf []string
	var currentLesson *int
	chunkIndex := 0

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}

		for _, piece := range p.chunker.Split(text) {
			content := fmt.Sprintf("Course %s content: %s", course.Title, piece)
			if currentLesson != nil {
				content = fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, *currentLesson, piece)
			}
			chunks = append(chunks, vectorstore.Chunk{
				Content:      content,
				CourseTitle:  course.Title,
				LessonNumber: currentLesson,
				Index:        chunkIndex,
			})
			chunkIndex++
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := lessonHeader.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()

			number, _ := strconv.Atoi(m[1])
			lesson := vectorstore.Lesson{Number: number, Title: strings.TrimSpace(m[2])}

			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(next, "Lesson Link:") {
					lesson.Link = strings.TrimSpace(strings.TrimPrefix(next, "Lesson Link:"))
					i++
				}
			}

			course.Lessons = append(course.Lessons, lesson)
			currentLesson = &lesson.Number
			continue
		}

		buf = append(buf, line)
	}
	flush()

	return chunks
}
