package coursetools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syllabot/syllabot/pkg/tool"
	"github.com/syllabot/syllabot/pkg/vectorstore"
)

// Outliner is the subset of the vector store the outline tool needs.
type Outliner interface {
	Outline(ctx context.Context, courseName string) (vectorstore.Course, error)
}

// OutlineTool returns a course's title, link, and full lesson list.
type OutlineTool struct {
	store Outliner
}

// NewOutlineTool creates the course outline tool.
func NewOutlineTool(store Outliner) *OutlineTool {
	return &OutlineTool{store: store}
}

// Schema implements tool.Tool.
func (t *OutlineTool) Schema() tool.Schema {
	return tool.Schema{
		Name:        "get_course_outline",
		Description: "Get the outline of a course: its title, link, and complete lesson list",
		Params: map[string]tool.Param{
			"course_name": {
				Type:        "string",
				Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				Required:    true,
			},
		},
	}
}

// Execute implements tool.Tool.
func (t *OutlineTool) Execute(ctx context.Context, params map[string]interface{}) (tool.Result, error) {
	if err := tool.ValidateParams(t.Schema(), params); err != nil {
		return tool.Result{}, err
	}

	name, _ := params["course_name"].(string)
	if strings.TrimSpace(name) == "" {
		return tool.Result{}, fmt.Errorf("course_name cannot be empty")
	}

	course, err := t.store.Outline(ctx, name)
	if errors.Is(err, vectorstore.ErrCourseNotFound) {
		return tool.Result{Text: fmt.Sprintf("No course found matching '%s'.", name)}, nil
	}
	if err != nil {
		return tool.Result{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "Lesson %d: %s\n", lesson.Number, lesson.Title)
	}

	return tool.Result{
		Text:    strings.TrimRight(b.String(), "\n"),
		Sources: []tool.Provenance{{Text: course.Title, Link: course.Link}},
	}, nil
}
