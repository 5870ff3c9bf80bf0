// Package rag ties the pieces together: it answers user queries by running
// the orchestrator over the course tools, maintains session history, and
// exposes catalog analytics.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/syllabot/syllabot/pkg/chat"
	"github.com/syllabot/syllabot/pkg/ingest"
	"github.com/syllabot/syllabot/pkg/orchestrator"
	"github.com/syllabot/syllabot/pkg/session"
	"github.com/syllabot/syllabot/pkg/tool"
)

// SystemPrompt frames the model as a course-materials assistant and steers
// its tool use.
const SystemPrompt = `You are an AI assistant specialized in course materials and educational content.

Tool usage:
- Use search_course_content for questions about specific course content or detailed educational materials.
- Use get_course_outline for questions about a course's structure, its lessons, or its link.
- Use at most one tool call per reasoning step. If a search returns nothing useful, say so rather than guessing.

Responses:
- Answer general knowledge questions directly without tools.
- Be brief, concise and focused. Do not mention the search process or the tools in your answer.
- Do not invent course content; ground course answers in tool results.`

// CourseCatalog is the subset of the vector store used for analytics.
type CourseCatalog interface {
	CourseCount() (int, error)
	CourseTitles() ([]string, error)
}

// Config holds the dependencies of a System.
type Config struct {
	Client    orchestrator.ModelClient
	Sessions  *session.Manager
	Catalog   CourseCatalog
	Tools     []tool.Tool
	Loader    *ingest.Loader
	Recorder  tool.InvokeRecorder
	MaxRounds int
	Logger    zerolog.Logger
}

// System is the question-answering facade.
type System struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
	catalog  CourseCatalog
	tools    []tool.Tool
	loader   *ingest.Loader
	recorder tool.InvokeRecorder
	logger   zerolog.Logger
}

// Answer is a completed query response with its cited sources.
type Answer struct {
	Text    string            `json:"answer"`
	Sources []tool.Provenance `json:"sources"`
}

// Analytics summarizes the indexed catalog.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// New creates a System.
func New(cfg Config) (*System, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("course catalog is required")
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Client:    cfg.Client,
		System:    SystemPrompt,
		MaxRounds: cfg.MaxRounds,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &System{
		orch:     orch,
		sessions: cfg.Sessions,
		catalog:  cfg.Catalog,
		tools:    cfg.Tools,
		loader:   cfg.Loader,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}, nil
}

// Query answers one user question within a session. Each call builds a
// fresh registry so provenance from concurrent queries never mixes. The
// completed exchange is appended to the session afterwards.
func (s *System) Query(ctx context.Context, query, sessionID string) (Answer, error) {
	reg := tool.NewRegistry(s.logger)
	if s.recorder != nil {
		reg.SetRecorder(s.recorder)
	}
	for _, t := range s.tools {
		if err := reg.Register(t); err != nil {
			return Answer{}, fmt.Errorf("failed to register tool: %w", err)
		}
	}

	history, err := s.history(sessionID)
	if err != nil {
		return Answer{}, err
	}

	text, err := s.orch.Respond(ctx, query, history, reg)
	if err != nil {
		return Answer{}, err
	}

	answer := Answer{Text: text, Sources: reg.DrainProvenance()}
	if answer.Sources == nil {
		answer.Sources = []tool.Provenance{}
	}

	if sessionID != "" {
		if err := s.sessions.AddExchange(sessionID, query, text); err != nil {
			s.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Failed to persist exchange")
		}
	}

	return answer, nil
}

// history converts a session's stored exchanges into conversation messages.
func (s *System) history(sessionID string) ([]chat.Message, error) {
	if sessionID == "" {
		return nil, nil
	}

	exchanges, err := s.sessions.History(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	messages := make([]chat.Message, 0, len(exchanges)*2)
	for _, e := range exchanges {
		messages = append(messages, chat.UserText(e.Query))
		messages = append(messages, chat.AssistantText(e.Answer))
	}
	return messages, nil
}

// CreateSession starts a new conversation and returns its ID.
func (s *System) CreateSession() (string, error) {
	return s.sessions.CreateSession()
}

// ClearSession wipes one conversation's history.
func (s *System) ClearSession(sessionID string) error {
	return s.sessions.ClearSession(sessionID)
}

// LoadCourseFolder ingests a folder of course documents into the index.
func (s *System) LoadCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	if s.loader == nil {
		return 0, 0, errors.New("no course loader configured")
	}
	return s.loader.LoadFolder(ctx, path, clearExisting)
}

// Analytics reports what the catalog currently holds.
func (s *System) Analytics() (Analytics, error) {
	count, err := s.catalog.CourseCount()
	if err != nil {
		return Analytics{}, err
	}
	titles, err := s.catalog.CourseTitles()
	if err != nil {
		return Analytics{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return Analytics{TotalCourses: count, CourseTitles: titles}, nil
}
