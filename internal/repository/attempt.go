package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"quizhub/internal/apperr"
	"quizhub/internal/audit"
	"quizhub/internal/catalog"
	"quizhub/internal/db"
	"quizhub/internal/logger"
	"quizhub/internal/model"
)

const attemptColumns = `attempt_id, user_id, quiz_id, timestamp, score, duration_attempted`

// AttemptRepository owns quiz_attempts and quiz_attempt_questions. Questions are read
// from the catalog and never written here.
type AttemptRepository struct {
	store   *db.Store
	catalog catalog.Catalog
	audit   audit.Auditor
	log     *logger.Logger
}

func NewAttemptRepository(store *db.Store, questions catalog.Catalog, auditor audit.Auditor, log *logger.Logger) *AttemptRepository {
	return &AttemptRepository{store: store, catalog: questions, audit: auditor, log: log.With("repository", "attempts")}
}

// AddAttempt writes the header and one answer row per question in a single transaction.
// A zero AttemptID is assigned by storage and set on the attempt after commit.
func (r *AttemptRepository) AddAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	if attempt == nil {
		return apperr.DAO("add_attempt", errors.New("nil attempt"))
	}
	id := attempt.AttemptID
	err := r.store.WithTx(ctx, func(tx pgx.Tx) error {
		if id == 0 {
			err := tx.QueryRow(ctx, `
        INSERT INTO quiz_attempts (user_id, quiz_id, timestamp, score, duration_attempted)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING attempt_id
      `, attempt.UserID, attempt.QuizID, attempt.Timestamp, attempt.Score, attempt.DurationAttempted).Scan(&id)
			if err != nil {
				return err
			}
		} else {
			_, err := tx.Exec(ctx, `
        INSERT INTO quiz_attempts (attempt_id, user_id, quiz_id, timestamp, score, duration_attempted)
        VALUES ($1, $2, $3, $4, $5, $6)
      `, id, attempt.UserID, attempt.QuizID, attempt.Timestamp, attempt.Score, attempt.DurationAttempted)
			if err != nil {
				return err
			}
		}

		for _, question := range attempt.QuestionsAttempted {
			_, err := tx.Exec(ctx, `
        INSERT INTO quiz_attempt_questions (attempt_id, question_id, selected_option_index)
        VALUES ($1, $2, $3)
      `, id, question.QuestionID, question.SelectedOptionIndex)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.DAO("add_attempt", err)
	}
	attempt.AttemptID = id
	r.log.Debug("attempt added", "attempt_id", id, "questions", len(attempt.QuestionsAttempted))
	r.audit.Log(ctx, "add_attempt")
	return nil
}

func (r *AttemptRepository) GetAttemptByID(ctx context.Context, id int64) (model.QuizAttempt, bool, error) {
	row := r.store.Pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE attempt_id = $1`, id)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		r.audit.Log(ctx, "get_attempt_by_id")
		return model.QuizAttempt{}, false, nil
	}
	if err != nil {
		return model.QuizAttempt{}, false, apperr.DAO("get_attempt_by_id", err)
	}
	questions, err := r.questionsByAttemptID(ctx, attempt.AttemptID)
	if err != nil {
		return model.QuizAttempt{}, false, apperr.DAO("get_attempt_by_id", err)
	}
	attempt.QuestionsAttempted = questions
	r.audit.Log(ctx, "get_attempt_by_id")
	return attempt, true, nil
}

func (r *AttemptRepository) GetAllAttempts(ctx context.Context) ([]model.QuizAttempt, error) {
	return r.listAttempts(ctx, "get_all_attempts", `SELECT `+attemptColumns+` FROM quiz_attempts ORDER BY attempt_id`)
}

func (r *AttemptRepository) GetAttemptsByUserID(ctx context.Context, userID int64) ([]model.QuizAttempt, error) {
	return r.listAttempts(ctx, "get_attempts_by_user_id", `
    SELECT `+attemptColumns+`
    FROM quiz_attempts
    WHERE user_id = $1
    ORDER BY attempt_id
  `, userID)
}

func (r *AttemptRepository) GetAttemptsByQuizID(ctx context.Context, quizID int64) ([]model.QuizAttempt, error) {
	return r.listAttempts(ctx, "get_attempts_by_quiz_id", `
    SELECT `+attemptColumns+`
    FROM quiz_attempts
    WHERE quiz_id = $1
    ORDER BY attempt_id
  `, quizID)
}

func (r *AttemptRepository) GetAttemptsByUserIDAndQuizID(ctx context.Context, userID, quizID int64) ([]model.QuizAttempt, error) {
	return r.listAttempts(ctx, "get_attempts_by_user_id_and_quiz_id", `
    SELECT `+attemptColumns+`
    FROM quiz_attempts
    WHERE user_id = $1 AND quiz_id = $2
    ORDER BY attempt_id
  `, userID, quizID)
}

// QuestionsByAttemptID returns the answered questions of an attempt merged with their
// catalog content.
func (r *AttemptRepository) QuestionsByAttemptID(ctx context.Context, attemptID int64) ([]model.Question, error) {
	questions, err := r.questionsByAttemptID(ctx, attemptID)
	if err != nil {
		return nil, apperr.DAO("get_questions_by_attempt_id", err)
	}
	r.audit.Log(ctx, "get_questions_by_attempt_id")
	return questions, nil
}

// UpdateAttempt changes score and duration only; the question list is write-once.
func (r *AttemptRepository) UpdateAttempt(ctx context.Context, attempt model.QuizAttempt) error {
	_, err := r.store.Pool.Exec(ctx, `
    UPDATE quiz_attempts
    SET score = $1, duration_attempted = $2
    WHERE attempt_id = $3
  `, attempt.Score, attempt.DurationAttempted, attempt.AttemptID)
	if err != nil {
		return apperr.DAO("update_attempt", err)
	}
	r.audit.Log(ctx, "update_attempt")
	return nil
}

// DeleteAttempt removes the answer rows before the header, in one transaction.
func (r *AttemptRepository) DeleteAttempt(ctx context.Context, id int64) error {
	err := r.store.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quiz_attempt_questions WHERE attempt_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM quiz_attempts WHERE attempt_id = $1`, id)
		return err
	})
	if err != nil {
		return apperr.DAO("delete_attempt", err)
	}
	r.audit.Log(ctx, "delete_attempt")
	return nil
}

func (r *AttemptRepository) listAttempts(ctx context.Context, op, query string, args ...any) ([]model.QuizAttempt, error) {
	rows, err := r.store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.DAO(op, err)
	}
	attempts := []model.QuizAttempt{}
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.DAO(op, err)
		}
		attempts = append(attempts, attempt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.DAO(op, err)
	}

	for i := range attempts {
		questions, err := r.questionsByAttemptID(ctx, attempts[i].AttemptID)
		if err != nil {
			return nil, apperr.DAO(op, err)
		}
		attempts[i].QuestionsAttempted = questions
	}
	r.audit.Log(ctx, op)
	return attempts, nil
}

func (r *AttemptRepository) questionsByAttemptID(ctx context.Context, attemptID int64) ([]model.Question, error) {
	rows, err := r.store.Pool.Query(ctx, `
    SELECT question_id, selected_option_index
    FROM quiz_attempt_questions
    WHERE attempt_id = $1
    ORDER BY question_id
  `, attemptID)
	if err != nil {
		return nil, err
	}
	var answers []model.AnsweredQuestion
	for rows.Next() {
		var answer model.AnsweredQuestion
		if err := rows.Scan(&answer.QuestionID, &answer.SelectedOptionIndex); err != nil {
			rows.Close()
			return nil, err
		}
		answers = append(answers, answer)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.enrich(ctx, attemptID, answers)
}

func (r *AttemptRepository) enrich(ctx context.Context, attemptID int64, answers []model.AnsweredQuestion) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(answers))
	if len(answers) == 0 {
		return questions, nil
	}
	ids := make([]int64, len(answers))
	for i, answer := range answers {
		ids[i] = answer.QuestionID
	}
	known, err := r.catalog.Questions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, answer := range answers {
		question, ok := known[answer.QuestionID]
		if !ok {
			r.log.Warn("answered question missing from catalog", "attempt_id", attemptID, "question_id", answer.QuestionID)
			questions = append(questions, model.Question{QuestionID: answer.QuestionID, SelectedOptionIndex: answer.SelectedOptionIndex})
			continue
		}
		questions = append(questions, model.Enrich(answer, question))
	}
	return questions, nil
}

func scanAttempt(row pgx.Row) (model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := row.Scan(&attempt.AttemptID, &attempt.UserID, &attempt.QuizID, &attempt.Timestamp, &attempt.Score, &attempt.DurationAttempted)
	return attempt, err
}
