package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"quizhub/internal/apperr"
	"quizhub/internal/db"
	"quizhub/internal/model"
)

// Catalog resolves question ids to their authoritative content. Ids missing from the
// catalog are absent from the returned map.
type Catalog interface {
	Questions(ctx context.Context, ids []int64) (map[int64]model.Question, error)
}

// Store reads the questions table. It never writes.
type Store struct {
	db db.DBTX
}

func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

func (s *Store) Questions(ctx context.Context, ids []int64) (map[int64]model.Question, error) {
	out := make(map[int64]model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, `
    SELECT question_id, quiz_id, content, options, correct_option_index
    FROM questions
    WHERE question_id = ANY($1)
  `, ids)
	if err != nil {
		return nil, apperr.DAO("get_questions_by_ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, apperr.DAO("get_questions_by_ids", err)
		}
		out[question.QuestionID] = question
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DAO("get_questions_by_ids", err)
	}
	return out, nil
}

func scanQuestion(row pgx.Row) (model.Question, error) {
	var (
		question model.Question
		options  string
	)
	if err := row.Scan(&question.QuestionID, &question.QuizID, &question.Content, &options, &question.CorrectOptionIndex); err != nil {
		return model.Question{}, err
	}
	parsed, err := DecodeOptions(options)
	if err != nil {
		return model.Question{}, fmt.Errorf("question %d: %w", question.QuestionID, err)
	}
	question.Options = parsed
	return question, nil
}

// DecodeOptions parses the serialized options column, a JSON array of strings.
func DecodeOptions(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var options []string
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return options, nil
}

func EncodeOptions(options []string) (string, error) {
	if options == nil {
		options = []string{}
	}
	data, err := json.Marshal(options)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
