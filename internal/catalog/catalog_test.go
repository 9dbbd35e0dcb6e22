package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"quizhub/internal/logger"
	"quizhub/internal/model"
)

func TestDecodeOptions(t *testing.T) {
	options, err := DecodeOptions(`["Paris","London","Rome"]`)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(options) != 3 || options[0] != "Paris" || options[2] != "Rome" {
		t.Fatalf("unexpected options %v", options)
	}
	if options, err := DecodeOptions(""); err != nil || options != nil {
		t.Fatalf("expected empty column to decode to nil, got %v (%v)", options, err)
	}
	if _, err := DecodeOptions(`{"a":1}`); err == nil {
		t.Fatalf("expected malformed options to error")
	}
}

func TestEncodeOptions(t *testing.T) {
	raw, err := EncodeOptions([]string{"yes", "no"})
	if err != nil || raw != `["yes","no"]` {
		t.Fatalf("unexpected encoding %s (%v)", raw, err)
	}
	raw, err = EncodeOptions(nil)
	if err != nil || raw != `[]` {
		t.Fatalf("expected empty array, got %s (%v)", raw, err)
	}
}

type staticCatalog struct {
	questions map[int64]model.Question
	calls     [][]int64
}

func (c *staticCatalog) Questions(_ context.Context, ids []int64) (map[int64]model.Question, error) {
	c.calls = append(c.calls, ids)
	out := make(map[int64]model.Question)
	for _, id := range ids {
		if q, ok := c.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func TestCachedFallsBackWhenRedisIsDown(t *testing.T) {
	inner := &staticCatalog{questions: map[int64]model.Question{
		10: {QuestionID: 10, QuizID: 2, Content: "2+2?", Options: []string{"3", "4"}, CorrectOptionIndex: 1},
	}}
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cached := NewCached(inner, client, time.Minute, logger.Nop())
	got, err := cached.Questions(context.Background(), []int64{10, 10, 11})
	if err != nil {
		t.Fatalf("expected fallback to inner catalog, got %v", err)
	}
	if len(got) != 1 || got[10].Content != "2+2?" {
		t.Fatalf("unexpected questions %v", got)
	}
	if len(inner.calls) != 1 || len(inner.calls[0]) != 2 {
		t.Fatalf("expected one deduplicated inner lookup, got %v", inner.calls)
	}
}

func TestCachedServesFromRedis(t *testing.T) {
	addr := os.Getenv("QUIZHUB_TEST_REDIS")
	if addr == "" {
		t.Skip("QUIZHUB_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	inner := &staticCatalog{questions: map[int64]model.Question{
		9001: {QuestionID: 9001, QuizID: 3, Content: "Capital of France?", Options: []string{"Paris", "Rome"}},
	}}
	cached := NewCached(inner, client, time.Minute, logger.Nop())
	ctx := context.Background()
	if err := cached.Invalidate(ctx, 9001); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if _, err := cached.Questions(ctx, []int64{9001}); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	got, err := cached.Questions(ctx, []int64{9001})
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if len(inner.calls) != 1 {
		t.Fatalf("expected second lookup to hit redis, inner calls %d", len(inner.calls))
	}
	if got[9001].Options[0] != "Paris" {
		t.Fatalf("unexpected cached question %+v", got[9001])
	}
}

func TestUniqueIDs(t *testing.T) {
	got := uniqueIDs([]int64{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("unexpected ids %v", got)
	}
}
