package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quizhub/internal/logger"
	"quizhub/internal/model"
)

const cacheKeyPrefix = "quizhub:question:"

// Cached is a read-through Redis cache in front of another Catalog. Redis failures
// degrade to the inner catalog.
type Cached struct {
	inner  Catalog
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

func NewCached(inner Catalog, client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{inner: inner, client: client, ttl: ttl, log: log.With("component", "catalog_cache")}
}

type cachedQuestion struct {
	QuestionID         int64    `json:"question_id"`
	QuizID             int64    `json:"quiz_id"`
	Content            string   `json:"content"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correct_option_index"`
}

func (c *Cached) Questions(ctx context.Context, ids []int64) (map[int64]model.Question, error) {
	ids = uniqueIDs(ids)
	out := make(map[int64]model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	missing := ids
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("catalog cache read failed", "error", err)
	} else {
		missing = nil
		for i, value := range values {
			question, ok := decodeCached(value)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = question
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.inner.Questions(ctx, missing)
	if err != nil {
		return nil, err
	}
	pipe := c.client.Pipeline()
	for id, question := range loaded {
		out[id] = question
		data, err := json.Marshal(cachedQuestion{
			QuestionID:         question.QuestionID,
			QuizID:             question.QuizID,
			Content:            question.Content,
			Options:            question.Options,
			CorrectOptionIndex: question.CorrectOptionIndex,
		})
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(id), data, c.ttl)
	}
	if len(loaded) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.Warn("catalog cache write failed", "error", err)
		}
	}
	return out, nil
}

// Invalidate drops cached entries, e.g. after the catalog owner edits a question.
func (c *Cached) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func decodeCached(value interface{}) (model.Question, bool) {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return model.Question{}, false
	}
	var cached cachedQuestion
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return model.Question{}, false
	}
	return model.Question{
		QuestionID:         cached.QuestionID,
		QuizID:             cached.QuizID,
		Content:            cached.Content,
		Options:            cached.Options,
		CorrectOptionIndex: cached.CorrectOptionIndex,
	}, true
}

func cacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
