package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quizhub/internal/apperr"
	"quizhub/internal/crypto"
	"quizhub/internal/logger"
	"quizhub/internal/model"
)

type UserStore interface {
	AddUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (model.User, bool, error)
	GetAllUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user model.User) error
	DeleteUser(ctx context.Context, id int64) error
}

type AttemptStore interface {
	AddAttempt(ctx context.Context, attempt *model.QuizAttempt) error
	GetAttemptByID(ctx context.Context, id int64) (model.QuizAttempt, bool, error)
	GetAllAttempts(ctx context.Context) ([]model.QuizAttempt, error)
	GetAttemptsByUserID(ctx context.Context, userID int64) ([]model.QuizAttempt, error)
	GetAttemptsByQuizID(ctx context.Context, quizID int64) ([]model.QuizAttempt, error)
	GetAttemptsByUserIDAndQuizID(ctx context.Context, userID, quizID int64) ([]model.QuizAttempt, error)
	UpdateAttempt(ctx context.Context, attempt model.QuizAttempt) error
	DeleteAttempt(ctx context.Context, id int64) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	users    UserStore
	attempts AttemptStore
	db       Pinger
	log      *logger.Logger
	now      func() time.Time
	hash     func(string) (string, error)
}

func NewServer(users UserStore, attempts AttemptStore, db Pinger, log *logger.Logger) *Server {
	return &Server{
		users:    users,
		attempts: attempts,
		db:       db,
		log:      log.With("component", "http"),
		now:      func() time.Time { return time.Now().UTC() },
		hash:     crypto.HashPassword,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Post("/users", s.handleCreateUser)
	r.Get("/users", s.handleListUsers)
	r.Get("/users/{userId}", s.handleGetUser)
	r.Put("/users/{userId}", s.handleUpdateUser)
	r.Delete("/users/{userId}", s.handleDeleteUser)

	r.Post("/attempts", s.handleCreateAttempt)
	r.Get("/attempts", s.handleListAttempts)
	r.Get("/attempts/{attemptId}", s.handleGetAttempt)
	r.Patch("/attempts/{attemptId}", s.handlePatchAttempt)
	r.Delete("/attempts/{attemptId}", s.handleDeleteAttempt)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		kv := []interface{}{
			"status", ww.Status(),
			"method", r.Method,
			"path", r.URL.Path,
			"latency", time.Since(start),
		}
		switch {
		case ww.Status() >= 500:
			s.log.Error("request failed", kv...)
		case ww.Status() >= 400:
			s.log.Warn("client error", kv...)
		default:
			s.log.Debug("request completed", kv...)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Users

type createUserRequest struct {
	Email            string `json:"email"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	Role             string `json:"role"`
	Level            string `json:"level"`
	Points           int    `json:"points"`
	Department       string `json:"department"`
	DateOfEmployment string `json:"date_of_employment"`
	Telephone        string `json:"telephone"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type userResponse struct {
	ID               int64   `json:"id"`
	Email            string  `json:"email"`
	Username         string  `json:"username"`
	Role             string  `json:"role"`
	Level            *string `json:"level,omitempty"`
	Points           *int    `json:"points,omitempty"`
	Department       *string `json:"department,omitempty"`
	DateOfEmployment *string `json:"date_of_employment,omitempty"`
	Telephone        *string `json:"telephone,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	user, errCode := userFromRequest(req)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	user.Password = hash

	if err := s.users.AddUser(r.Context(), &user); err != nil {
		s.writeStoreError(w, "add_user", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapUser(user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.GetAllUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, "get_all_users", err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, mapUser(user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	user, found, err := s.users.GetUserByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get_user_by_id", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	user, found, err := s.users.GetUserByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get_user_by_id", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Password != nil {
		hash, err := s.hash(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		user.Password = hash
	}
	if err := s.users.UpdateUser(r.Context(), user); err != nil {
		s.writeStoreError(w, "update_user", err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := s.users.DeleteUser(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete_user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userFromRequest(req createUserRequest) (model.User, string) {
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return model.User{}, "invalid_role"
	}
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)
	switch role {
	case model.RoleStudent:
		level, err := model.ParseLevel(req.Level)
		if err != nil {
			return model.User{}, "invalid_level"
		}
		return model.NewStudent(email, username, req.Password, level, req.Points), ""
	case model.RoleInstructor:
		employed, err := time.Parse(time.DateOnly, req.DateOfEmployment)
		if err != nil {
			return model.User{}, "invalid_date_of_employment"
		}
		return model.NewInstructor(email, username, req.Password, strings.TrimSpace(req.Department), employed), ""
	default:
		return model.NewAdmin(email, username, req.Password, strings.TrimSpace(req.Telephone)), ""
	}
}

func mapUser(user model.User) userResponse {
	resp := userResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
	}
	switch {
	case user.Student != nil:
		level := string(user.Student.Level)
		points := user.Student.Points
		resp.Level = &level
		resp.Points = &points
	case user.Instructor != nil:
		department := user.Instructor.Department
		employed := user.Instructor.DateOfEmployment.Format(time.DateOnly)
		resp.Department = &department
		resp.DateOfEmployment = &employed
	case user.Admin != nil:
		telephone := user.Admin.Telephone
		resp.Telephone = &telephone
	}
	return resp
}

// Attempts

type answerPayload struct {
	QuestionID          int64 `json:"question_id"`
	SelectedOptionIndex int   `json:"selected_option_index"`
}

type createAttemptRequest struct {
	AttemptID         int64           `json:"attempt_id"`
	UserID            int64           `json:"user_id"`
	QuizID            int64           `json:"quiz_id"`
	Timestamp         *time.Time      `json:"timestamp"`
	Score             int             `json:"score"`
	DurationAttempted float64         `json:"duration_attempted"`
	Questions         []answerPayload `json:"questions"`
}

type patchAttemptRequest struct {
	Score             *int     `json:"score"`
	DurationAttempted *float64 `json:"duration_attempted"`
}

type questionResponse struct {
	QuestionID          int64    `json:"question_id"`
	QuizID              int64    `json:"quiz_id"`
	Content             string   `json:"content"`
	Options             []string `json:"options"`
	CorrectOptionIndex  int      `json:"correct_option_index"`
	SelectedOptionIndex int      `json:"selected_option_index"`
}

type attemptResponse struct {
	AttemptID         int64              `json:"attempt_id"`
	UserID            int64              `json:"user_id"`
	QuizID            int64              `json:"quiz_id"`
	Timestamp         time.Time          `json:"timestamp"`
	Score             int                `json:"score"`
	DurationAttempted float64            `json:"duration_attempted"`
	Questions         []questionResponse `json:"questions"`
}

func (s *Server) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	var req createAttemptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.AttemptID < 0 || req.UserID <= 0 || req.QuizID <= 0 || req.DurationAttempted < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	attempt := model.QuizAttempt{
		AttemptID:         req.AttemptID,
		UserID:            req.UserID,
		QuizID:            req.QuizID,
		Timestamp:         s.now(),
		Score:             req.Score,
		DurationAttempted: req.DurationAttempted,
	}
	if req.Timestamp != nil {
		attempt.Timestamp = req.Timestamp.UTC()
	}
	for _, answer := range req.Questions {
		if answer.QuestionID <= 0 || answer.SelectedOptionIndex < 0 {
			writeError(w, http.StatusBadRequest, "invalid_question")
			return
		}
		attempt.QuestionsAttempted = append(attempt.QuestionsAttempted, model.Question{
			QuestionID:          answer.QuestionID,
			SelectedOptionIndex: answer.SelectedOptionIndex,
			QuizID:              req.QuizID,
		})
	}

	if err := s.attempts.AddAttempt(r.Context(), &attempt); err != nil {
		s.writeStoreError(w, "add_attempt", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapAttempt(attempt))
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	userID, hasUser, err := queryID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	quizID, hasQuiz, err := queryID(r, "quiz_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_quiz_id")
		return
	}

	var attempts []model.QuizAttempt
	switch {
	case hasUser && hasQuiz:
		attempts, err = s.attempts.GetAttemptsByUserIDAndQuizID(r.Context(), userID, quizID)
	case hasUser:
		attempts, err = s.attempts.GetAttemptsByUserID(r.Context(), userID)
	case hasQuiz:
		attempts, err = s.attempts.GetAttemptsByQuizID(r.Context(), quizID)
	default:
		attempts, err = s.attempts.GetAllAttempts(r.Context())
	}
	if err != nil {
		s.writeStoreError(w, "list_attempts", err)
		return
	}
	out := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		out = append(out, mapAttempt(attempt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "attemptId")
	if !ok {
		return
	}
	attempt, found, err := s.attempts.GetAttemptByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get_attempt_by_id", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "attempt_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapAttempt(attempt))
}

func (s *Server) handlePatchAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "attemptId")
	if !ok {
		return
	}
	var req patchAttemptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.DurationAttempted != nil && *req.DurationAttempted < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	attempt, found, err := s.attempts.GetAttemptByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get_attempt_by_id", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "attempt_not_found")
		return
	}
	if req.Score != nil {
		attempt.Score = *req.Score
	}
	if req.DurationAttempted != nil {
		attempt.DurationAttempted = *req.DurationAttempted
	}
	if err := s.attempts.UpdateAttempt(r.Context(), attempt); err != nil {
		s.writeStoreError(w, "update_attempt", err)
		return
	}
	writeJSON(w, http.StatusOK, mapAttempt(attempt))
}

func (s *Server) handleDeleteAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "attemptId")
	if !ok {
		return
	}
	if err := s.attempts.DeleteAttempt(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete_attempt", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapAttempt(attempt model.QuizAttempt) attemptResponse {
	questions := make([]questionResponse, 0, len(attempt.QuestionsAttempted))
	for _, q := range attempt.QuestionsAttempted {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		questions = append(questions, questionResponse{
			QuestionID:          q.QuestionID,
			QuizID:              q.QuizID,
			Content:             q.Content,
			Options:             options,
			CorrectOptionIndex:  q.CorrectOptionIndex,
			SelectedOptionIndex: q.SelectedOptionIndex,
		})
	}
	return attemptResponse{
		AttemptID:         attempt.AttemptID,
		UserID:            attempt.UserID,
		QuizID:            attempt.QuizID,
		Timestamp:         attempt.Timestamp,
		Score:             attempt.Score,
		DurationAttempted: attempt.DurationAttempted,
		Questions:         questions,
	}
}

// Helpers

func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email_taken")
	case errors.Is(err, apperr.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email")
	case errors.Is(err, apperr.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, "invalid_user")
	default:
		s.log.Error("store operation failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return 0, false
	}
	return id, true
}

func queryID(r *http.Request, key string) (int64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
