// Package cluster implements two-stage event clustering: a fast numeric
// similarity stage against existing event vectors, with an LLM reasoning
// fallback that either matches contextually or defines a new event.
package cluster

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/newstide/ai/embedding"
	"github.com/hrygo/newstide/ai/llm"
	"github.com/hrygo/newstide/similarity"
	"github.com/hrygo/newstide/store"
)

// ErrPromptMissing is returned when the cluster detection prompt template is
// not configured. There is deliberately no built-in default: running with an
// improvised prompt would silently degrade clustering quality, so the whole
// clustering pass aborts instead.
var ErrPromptMissing = errors.New("cluster: detection prompt template not configured")

// ErrMalformedResponse is returned when the LLM reply cannot be parsed into a
// clustering decision. It is a transient failure: the article stays
// unclustered and is eligible for a later pass.
var ErrMalformedResponse = errors.New("cluster: malformed LLM response")

const reasoningMaxTokens = 3000

// Outcome tags how an article was clustered.
type Outcome string

const (
	// OutcomeAssigned means the article joined an existing event.
	OutcomeAssigned Outcome = "assigned"
	// OutcomeCreated means a new event was created for the article.
	OutcomeCreated Outcome = "created"
)

// Result is the decision for one article within one topic. The Outcome tag
// makes assignment and creation explicit instead of being inferred from
// side effects.
type Result struct {
	Outcome   Outcome
	Event     *store.Event
	Relevance float64
}

// Request carries one article-topic pair through clustering.
type Request struct {
	UserID         int32
	TopicID        int32
	TopicName      string
	ArticleTitle   string
	ArticleSummary string
	TitleVector    []float32
	SummaryVector  []float32

	// Threshold is the numeric-stage similarity cutoff.
	Threshold float64
	// PromptTemplate is the cluster detection template with {placeholder}
	// slots. Empty means not configured.
	PromptTemplate string
}

// Service performs clustering decisions.
type Service struct {
	store    *store.Store
	llm      llm.Service
	embedder embedding.Service
}

// NewService creates a clustering service.
func NewService(store *store.Store, llmService llm.Service, embedder embedding.Service) *Service {
	return &Service{
		store:    store,
		llm:      llmService,
		embedder: embedder,
	}
}

// DetectOrCreate runs the two-stage clustering algorithm for one article
// within one topic. The numeric stage wins whenever any existing event vector
// scores at or above the threshold; only then is the LLM consulted, and the
// reasoning stage always ends with a new event whose relevance is 1.0.
func (s *Service) DetectOrCreate(ctx context.Context, req *Request) (*Result, error) {
	events, err := s.store.ListEvents(ctx, &store.FindEvent{
		UserID:  &req.UserID,
		TopicID: &req.TopicID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list existing events")
	}

	// Stage 1: numeric similarity against existing event vectors. Skipped
	// when the article has no vectors at all; the reasoning stage can still
	// decide from the text.
	if len(events) > 0 && len(req.TitleVector)+len(req.SummaryVector) > 0 {
		match, err := similarity.FindSimilarEvent(req.TitleVector, req.SummaryVector, events, req.Threshold)
		if err != nil {
			return nil, errors.Wrap(err, "failed to score existing events")
		}
		if match != nil {
			slog.Info("direct embedding match found",
				slog.Int("event", int(match.Event.ID)),
				slog.Float64("similarity", match.Score))
			return &Result{
				Outcome:   OutcomeAssigned,
				Event:     match.Event,
				Relevance: match.Score,
			}, nil
		}
		slog.Debug("no embedding match above threshold, proceeding to LLM analysis",
			slog.Float64("threshold", req.Threshold))
	}

	// Stage 2: LLM reasoning.
	return s.analyzeWithLLM(ctx, req, events)
}

// clusterDecision is the structured output contract for the reasoning stage.
type clusterDecision struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	EventDescription string `json:"event_description"`
}

var clusterSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"title":             {Type: "string", Description: "Short name of the event"},
		"description":       {Type: "string", Description: "One-paragraph summary of the event"},
		"event_description": {Type: "string", Description: "Detailed description of what happened"},
	},
	Required: []string{"title", "description", "event_description"},
}

func (s *Service) analyzeWithLLM(ctx context.Context, req *Request, events []*store.Event) (*Result, error) {
	if strings.TrimSpace(req.PromptTemplate) == "" {
		return nil, ErrPromptMissing
	}

	prompt := renderTemplate(req.PromptTemplate, map[string]string{
		"user_id":         strconv.Itoa(int(req.UserID)),
		"topic_id":        strconv.Itoa(int(req.TopicID)),
		"topic_name":      req.TopicName,
		"existing_events": formatEventsContext(events),
		"article_title":   req.ArticleTitle,
		"article_summary": req.ArticleSummary,
	})

	content, _, err := s.llm.Complete(ctx, []llm.Message{llm.UserMessage(prompt)}, &llm.CompleteOptions{
		MaxTokens: reasoningMaxTokens,
		Schema: &llm.ResponseSchema{
			Name:   "cluster_detection",
			Schema: clusterSchema,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "cluster detection LLM call failed")
	}

	var decision clusterDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &decision); err != nil {
		slog.Error("failed to parse cluster detection response",
			slog.String("content", content),
			slog.String("error", err.Error()))
		return nil, ErrMalformedResponse
	}
	if decision.Title == "" {
		slog.Error("cluster detection response missing event title")
		return nil, ErrMalformedResponse
	}

	event, err := s.store.CreateEvent(ctx, &store.CreateEvent{
		UserID:              req.UserID,
		TopicID:             req.TopicID,
		Title:               decision.Title,
		Description:         decision.Description,
		DetailedDescription: decision.EventDescription,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event cluster")
	}

	slog.Info("created new event cluster",
		slog.Int("event", int(event.ID)),
		slog.String("title", decision.Title))

	s.backfillEventVector(ctx, event)

	// A freshly defined event is a perfect match for the article that
	// triggered it.
	return &Result{
		Outcome:   OutcomeCreated,
		Event:     event,
		Relevance: 1.0,
	}, nil
}

// backfillEventVector embeds the new event description so the numeric stage
// can find it next time. Best effort: failure leaves the vector NULL and the
// event reachable only through the reasoning stage.
func (s *Service) backfillEventVector(ctx context.Context, event *store.Event) {
	if s.embedder == nil {
		return
	}

	text := event.Title
	if event.Description != "" {
		text += "\n" + event.Description
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("failed to embed new event, vector left unset",
			slog.Int("event", int(event.ID)),
			slog.String("error", err.Error()))
		return
	}
	if err := s.store.UpdateEventVector(ctx, &store.UpdateEventVector{ID: event.ID, Vector: vector}); err != nil {
		slog.Warn("failed to store new event vector",
			slog.Int("event", int(event.ID)),
			slog.String("error", err.Error()))
		return
	}
	event.Vector = vector
}

// formatEventsContext renders existing events for the LLM prompt.
func formatEventsContext(events []*store.Event) string {
	if len(events) == 0 {
		return "No existing event clusters for this topic."
	}

	lines := []string{}
	for _, event := range events {
		lines = append(lines, "Event ID "+strconv.Itoa(int(event.ID))+": "+event.Title)
		if event.Description != "" {
			lines = append(lines, "  Description: "+event.Description)
		}
	}
	return strings.Join(lines, "\n")
}

// renderTemplate substitutes {name} placeholders. Unknown placeholders are
// left as-is so template typos are visible in the rendered prompt.
func renderTemplate(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
