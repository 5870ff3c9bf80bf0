package vectorstore

// Course is the metadata of one ingested course document.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons,omitempty"`
}

// Lesson is one lesson within a course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is one indexable piece of course content.
type Chunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Index        int    `json:"index"`
}

// SearchOptions filters and bounds a content search.
type SearchOptions struct {
	// CourseName restricts results to one course; partial titles resolve
	// through the catalog vectors.
	CourseName string
	// LessonNumber restricts results to one lesson.
	LessonNumber *int
	// Limit caps the number of results. Zero means the store default.
	Limit int
}

// SearchResult is one matching chunk with its relevance score.
type SearchResult struct {
	ChunkID      string  `json:"chunk_id"`
	CourseTitle  string  `json:"course_title"`
	LessonNumber *int    `json:"lesson_number,omitempty"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}
