// Package orchestrator drives the bounded tool-calling loop between a
// language model and a tool registry. One Respond call serves one user
// query: the model may request tools for a fixed number of rounds, after
// which a final tools-withheld call forces a text answer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/syllabot/syllabot/pkg/chat"
	"github.com/syllabot/syllabot/pkg/tool"
)

// DefaultMaxRounds is the number of tool-calling rounds allowed per query.
const DefaultMaxRounds = 2

// FallbackAnswer replaces a model turn that ended without usable text, so a
// query never yields an empty response.
const FallbackAnswer = "I was unable to generate an answer for that question. Please try rephrasing it."

// ModelClient sends a conversation to the language model and returns either
// a final text answer or a set of tool-invocation requests.
type ModelClient interface {
	Send(ctx context.Context, req chat.Request) (chat.Response, error)
}

// Config holds orchestrator configuration.
type Config struct {
	Client    ModelClient
	System    string
	MaxRounds int
	Logger    zerolog.Logger
}

// Orchestrator runs the round state machine for one query at a time. It is
// safe for concurrent use as long as each query brings its own Registry.
type Orchestrator struct {
	client    ModelClient
	system    string
	maxRounds int
	logger    zerolog.Logger
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, errors.New("model client is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}

	return &Orchestrator{
		client:    cfg.Client,
		system:    cfg.System,
		maxRounds: cfg.MaxRounds,
		logger:    cfg.Logger,
	}, nil
}

// Respond answers one user query. The prior history and the query form the
// initial conversation; each round sends it to the model with the
// registry's schemas offered under an auto tool-choice. A response without
// tool invocations terminates the loop with its text. Tool failures are fed
// back to the model as error result blocks, never raised. If the model
// still wants tools once the round cap is reached, one final call with
// schemas withheld produces the answer, so a query completes within
// MaxRounds+1 model calls. A transport failure of the model call itself is
// fatal for the query and is returned unretried.
func (o *Orchestrator) Respond(ctx context.Context, query string, history []chat.Message, reg *tool.Registry) (string, error) {
	logger := o.logger.With().Str("run_id", uuid.NewString()).Logger()

	messages := make([]chat.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, chat.UserText(query))

	schemas := reg.Schemas()

	for round := 0; round < o.maxRounds; round++ {
		resp, err := o.client.Send(ctx, chat.Request{
			System:     o.system,
			Messages:   messages,
			Tools:      schemas,
			ToolChoice: chat.ToolChoiceAuto,
		})
		if err != nil {
			return "", fmt.Errorf("model call failed on round %d: %w", round+1, err)
		}

		if len(resp.Invocations) == 0 {
			logger.Debug().Int("rounds", round).Msg("Query answered")
			return o.finalText(resp, logger), nil
		}

		results := o.executeInvocations(ctx, reg, resp.Invocations, logger)
		messages = append(messages, assistantMessage(resp))
		messages = append(messages, chat.Message{Role: chat.RoleUser, Blocks: results})

		logger.Debug().
			Int("round", round+1).
			Int("invocations", len(resp.Invocations)).
			Msg("Tool round completed")
	}

	// The round cap was crossed with the model still requesting tools.
	// Withhold the schemas and force a text-only synthesis so the caller
	// never receives an empty answer.
	resp, err := o.client.Send(ctx, chat.Request{
		System:     o.system,
		Messages:   messages,
		ToolChoice: chat.ToolChoiceNone,
	})
	if err != nil {
		return "", fmt.Errorf("final model call failed: %w", err)
	}

	logger.Debug().Int("rounds", o.maxRounds).Msg("Query answered after forced final call")
	return o.finalText(resp, logger), nil
}

// executeInvocations runs every requested invocation in order and returns
// one result block per invocation, id-paired. Failures become error result
// blocks so the model can adapt on the next round.
func (o *Orchestrator) executeInvocations(ctx context.Context, reg *tool.Registry, invocations []chat.ToolUse, logger zerolog.Logger) []chat.Block {
	blocks := make([]chat.Block, 0, len(invocations))

	for _, inv := range invocations {
		text, err := reg.Invoke(ctx, inv.Name, inv.Params)
		if err != nil {
			logger.Warn().Str("tool", inv.Name).Err(err).Msg("Tool invocation failed")
			blocks = append(blocks, chat.ToolResult{
				ToolUseID: inv.ID,
				Text:      err.Error(),
				IsError:   true,
			})
			continue
		}

		blocks = append(blocks, chat.ToolResult{ToolUseID: inv.ID, Text: text})
	}

	return blocks
}

func (o *Orchestrator) finalText(resp chat.Response, logger zerolog.Logger) string {
	if resp.Text == "" {
		logger.Warn().Str("stop", string(resp.Stop)).Msg("Model response carried no usable text")
		return FallbackAnswer
	}
	return resp.Text
}

// assistantMessage rebuilds the assistant turn from a model response so the
// next round sees the tool requests it made.
func assistantMessage(resp chat.Response) chat.Message {
	var blocks []chat.Block
	if resp.Text != "" {
		blocks = append(blocks, chat.Text{Text: resp.Text})
	}
	for _, inv := range resp.Invocations {
		blocks = append(blocks, inv)
	}
	return chat.Message{Role: chat.RoleAssistant, Blocks: blocks}
}
