// Package similarity implements cosine similarity scoring between article
// embeddings and topic or event vectors.
package similarity

import (
	"log/slog"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

// MatchSource records which article embedding produced the winning score.
type MatchSource string

const (
	// MatchSourceTitle means the title embedding scored highest.
	MatchSourceTitle MatchSource = "title"
	// MatchSourceSummary means the summary embedding scored highest.
	MatchSourceSummary MatchSource = "summary"
)

// TopicMatch is a topic scored against an article.
type TopicMatch struct {
	Topic  *store.Topic
	Score  float64
	Source MatchSource
}

// EventMatch is the best-scoring event for an article within a topic.
type EventMatch struct {
	Event *store.Event
	Score float64
}

// Cosine computes the cosine similarity of two vectors.
// Vectors of different dimensions cannot be compared and yield an error.
// A zero vector has no direction; its similarity to anything is 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// FindSimilarTopics scores an article against each topic and returns every
// match at or above the threshold, highest score first. An article is scored
// with both its title and summary embeddings when available; the higher of
// the two wins and its source is recorded.
//
// At least one of titleVector/summaryVector must be present.
func FindSimilarTopics(titleVector, summaryVector []float32, topics []*store.Topic, threshold float64) ([]*TopicMatch, error) {
	if len(titleVector) == 0 && len(summaryVector) == 0 {
		return nil, errors.New("article has no embeddings to match with")
	}

	matches := []*TopicMatch{}
	for _, topic := range topics {
		if len(topic.Vector) == 0 {
			continue
		}

		score, source, err := bestScore(titleVector, summaryVector, topic.Vector)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to score topic %d", topic.ID)
		}
		if score >= threshold {
			matches = append(matches, &TopicMatch{Topic: topic, Score: score, Source: source})
		}
	}

	// Stable: equal scores keep topic order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches, nil
}

// FindSimilarEvent scores an article against each candidate event and returns
// the single best match at or above the threshold, or nil when no event
// qualifies. Events without vectors or with mismatched dimensions are skipped
// rather than failing the whole pass.
func FindSimilarEvent(titleVector, summaryVector []float32, events []*store.Event, threshold float64) (*EventMatch, error) {
	if len(titleVector) == 0 && len(summaryVector) == 0 {
		return nil, errors.New("article has no embeddings to match with")
	}

	var best *EventMatch
	for _, event := range events {
		if len(event.Vector) == 0 {
			continue
		}

		score, _, err := bestScore(titleVector, summaryVector, event.Vector)
		if err != nil {
			slog.Warn("skipping event with incomparable vector",
				slog.Int("event", int(event.ID)),
				slog.String("error", err.Error()))
			continue
		}
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &EventMatch{Event: event, Score: score}
		}
	}

	return best, nil
}

// bestScore returns the max of the title and summary similarities against the
// target vector, with the source of the winning score. Ties go to the summary.
func bestScore(titleVector, summaryVector, target []float32) (float64, MatchSource, error) {
	score := -1.0
	source := MatchSourceTitle

	if len(titleVector) > 0 {
		titleScore, err := Cosine(titleVector, target)
		if err != nil {
			return 0, "", err
		}
		score = titleScore
	}
	if len(summaryVector) > 0 {
		summaryScore, err := Cosine(summaryVector, target)
		if err != nil {
			return 0, "", err
		}
		if summaryScore >= score {
			score = summaryScore
			source = MatchSourceSummary
		}
	}

	return score, source, nil
}
