// Package coursetools exposes the course index to the model as invocable
// tools: content search and course outlines.
package coursetools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/syllabot/syllabot/pkg/tool"
	"github.com/syllabot/syllabot/pkg/vectorstore"
)

// Searcher is the subset of the vector store the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
	LessonLink(courseTitle string, lessonNumber int) (string, error)
}

// SearchTool searches course content with optional course and lesson
// filters.
type SearchTool struct {
	store Searcher
}

// NewSearchTool creates the course content search tool.
func NewSearchTool(store Searcher) *SearchTool {
	return &SearchTool{store: store}
}

// Schema implements tool.Tool.
func (t *SearchTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		Params: map[string]tool.Param{
			"query": {
				Type:        "string",
				Description: "What to search for in the course content",
				Required:    true,
			},
			"course_name": {
				Type:        "string",
				Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": {
				Type:        "integer",
				Description: "Specific lesson number to search within (e.g. 1, 3)",
			},
		},
	}
}

// Execute implements tool.Tool.
func (t *SearchTool) Execute(ctx context.Context, params map[string]interface{}) (tool.Result, error) {
	if err := tool.ValidateParams(t.Schema(), params); err != nil {
		return tool.Result{}, err
	}

	query, _ := params["query"].(string)
	if strings.TrimSpace(query) == "" {
		return tool.Result{}, fmt.Errorf("query cannot be empty")
	}

	opts := vectorstore.SearchOptions{}
	if name, ok := params["course_name"].(string); ok {
		opts.CourseName = name
	}
	if raw, ok := params["lesson_number"]; ok {
		number, err := intParam(raw)
		if err != nil {
			return tool.Result{}, fmt.Errorf("lesson_number: %w", err)
		}
		if number < 1 {
			return tool.Result{}, fmt.Errorf("lesson_number must be at least 1, got %d", number)
		}
		opts.LessonNumber = &number
	}

	results, err := t.store.Search(ctx, query, opts)
	if errors.Is(err, vectorstore.ErrCourseNotFound) {
		return tool.Result{Text: fmt.Sprintf("No course found matching '%s'.", opts.CourseName)}, nil
	}
	if err != nil {
		return tool.Result{}, err
	}

	if len(results) == 0 {
		return tool.Result{Text: emptyMessage(opts)}, nil
	}

	return t.formatResults(results), nil
}

// formatResults renders matches for the model and collects provenance for
// the caller.
func (t *SearchTool) formatResults(results []vectorstore.SearchResult) tool.Result {
	sections := make([]string, 0, len(results))
	sources := make([]tool.Provenance, 0, len(results))

	for _, r := range results {
		header := fmt.Sprintf("[%s]", r.CourseTitle)
		source := tool.Provenance{Text: r.CourseTitle}

		if r.LessonNumber != nil {
			header = fmt.Sprintf("[%s - Lesson %d]", r.CourseTitle, *r.LessonNumber)
			source.Text = fmt.Sprintf("%s - Lesson %d", r.CourseTitle, *r.LessonNumber)
			if link, err := t.store.LessonLink(r.CourseTitle, *r.LessonNumber); err == nil {
				source.Link = link
			}
		}

		sections = append(sections, header+"\n"+r.Content)
		sources = append(sources, source)
	}

	return tool.Result{
		Text:    strings.Join(sections, "\n\n"),
		Sources: sources,
	}
}

func emptyMessage(opts vectorstore.SearchOptions) string {
	msg := "No relevant content found"
	if opts.CourseName != "" {
		msg += fmt.Sprintf(" in course '%s'", opts.CourseName)
	}
	if opts.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *opts.LessonNumber)
	}
	return msg + "."
}

// intParam accepts the number shapes JSON decoding produces.
func intParam(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", raw)
	}
}
