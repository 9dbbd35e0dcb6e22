package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"quizhub/internal/apperr"
	"quizhub/internal/audit"
	"quizhub/internal/db"
	"quizhub/internal/logger"
	"quizhub/internal/model"
	"quizhub/internal/validation"
)

const userColumns = `id, email, username, password, role, level, points, department, date_of_employment, telephone`

type UserRepository struct {
	store  *db.Store
	policy *validation.EmailPolicy
	audit  audit.Auditor
	log    *logger.Logger
}

func NewUserRepository(store *db.Store, policy *validation.EmailPolicy, auditor audit.Auditor, log *logger.Logger) *UserRepository {
	return &UserRepository{store: store, policy: policy, audit: auditor, log: log.With("repository", "users")}
}

// AddUser validates the user shape, then checks email uniqueness before the role email
// rule and inserts the row, all in one transaction. On success user.ID holds the id
// assigned by storage.
func (r *UserRepository) AddUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return apperr.DAO("add_user", errors.New("nil user"))
	}
	if err := user.Validate(); err != nil {
		return err
	}
	row := rowFromUser(*user)

	var id int64
	err := r.store.WithTx(ctx, func(tx pgx.Tx) error {
		exists, err := emailExists(ctx, tx, user.Email)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateEmail, user.Email)
		}
		if err := r.policy.Check(user.Role, user.Email); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
      INSERT INTO users (email, username, password, role, level, points, department, date_of_employment, telephone)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
      RETURNING id
    `, row.Email, row.Username, row.Password, row.Role, row.Level, row.Points, row.Department, row.DateOfEmployment, row.Telephone).Scan(&id)
	})
	if err != nil {
		return r.writeError("add_user", user.Email, err)
	}
	user.ID = id
	r.log.Debug("user added", "user_id", id, "role", user.Role)
	r.audit.Log(ctx, "add_user")
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (model.User, bool, error) {
	row := r.store.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		r.audit.Log(ctx, "get_user_by_id")
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, apperr.DAO("get_user_by_id", err)
	}
	r.audit.Log(ctx, "get_user_by_id")
	return user, true, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (model.User, bool, error) {
	row := r.store.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		r.audit.Log(ctx, "get_user_by_email")
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, apperr.DAO("get_user_by_email", err)
	}
	r.audit.Log(ctx, "get_user_by_email")
	return user, true, nil
}

func (r *UserRepository) GetAllUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.store.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, apperr.DAO("get_all_users", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperr.DAO("get_all_users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DAO("get_all_users", err)
	}
	r.audit.Log(ctx, "get_all_users")
	return users, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := emailExists(ctx, r.store.Pool, email)
	if err != nil {
		return false, apperr.DAO("email_exists", err)
	}
	return exists, nil
}

// UpdateUser changes email, username and password only. The email is checked against
// the role already stored for the id; an unknown id is a no-op.
func (r *UserRepository) UpdateUser(ctx context.Context, user model.User) error {
	err := r.store.WithTx(ctx, func(tx pgx.Tx) error {
		var storedRole string
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, user.ID).Scan(&storedRole)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		role, err := model.ParseRole(storedRole)
		if err != nil {
			return err
		}
		if err := r.policy.Check(role, user.Email); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
      UPDATE users
      SET email = $1, username = $2, password = $3
      WHERE id = $4
    `, user.Email, user.Username, user.Password, user.ID)
		return err
	})
	if err != nil {
		return r.writeError("update_user", user.Email, err)
	}
	r.audit.Log(ctx, "update_user")
	return nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	if _, err := r.store.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return apperr.DAO("delete_user", err)
	}
	r.audit.Log(ctx, "delete_user")
	return nil
}

func (r *UserRepository) writeError(op, email string, err error) error {
	switch {
	case errors.Is(err, apperr.ErrDuplicateEmail), errors.Is(err, apperr.ErrInvalidEmail):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s", apperr.ErrDuplicateEmail, email)
	default:
		return apperr.DAO(op, err)
	}
}

func emailExists(ctx context.Context, conn db.DBTX, email string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// userRow mirrors the wide users table; role-specific columns are nullable.
type userRow struct {
	ID               int64
	Email            string
	Username         string
	Password         string
	Role             string
	Level            *string
	Points           *int
	Department       *string
	DateOfEmployment *time.Time
	Telephone        *string
}

func scanUser(row pgx.Row) (model.User, error) {
	var r userRow
	if err := row.Scan(&r.ID, &r.Email, &r.Username, &r.Password, &r.Role, &r.Level, &r.Points, &r.Department, &r.DateOfEmployment, &r.Telephone); err != nil {
		return model.User{}, err
	}
	return r.toUser()
}

func rowFromUser(u model.User) userRow {
	row := userRow{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Password: u.Password,
		Role:     string(u.Role),
	}
	switch u.Role {
	case model.RoleStudent:
		level := string(u.Student.Level)
		points := u.Student.Points
		row.Level = &level
		row.Points = &points
	case model.RoleInstructor:
		department := u.Instructor.Department
		employed := u.Instructor.DateOfEmployment
		row.Department = &department
		row.DateOfEmployment = &employed
	case model.RoleAdmin:
		telephone := u.Admin.Telephone
		row.Telephone = &telephone
	}
	return row
}

func (r userRow) toUser() (model.User, error) {
	role, err := model.ParseRole(r.Role)
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", r.ID, err)
	}
	user := model.User{ID: r.ID, Email: r.Email, Username: r.Username, Password: r.Password, Role: role}
	switch role {
	case model.RoleStudent:
		if r.Level == nil {
			return model.User{}, fmt.Errorf("user %d: student without level", r.ID)
		}
		level, err := model.ParseLevel(*r.Level)
		if err != nil {
			return model.User{}, fmt.Errorf("user %d: %w", r.ID, err)
		}
		profile := &model.StudentProfile{Level: level}
		if r.Points != nil {
			profile.Points = *r.Points
		}
		user.Student = profile
	case model.RoleInstructor:
		profile := &model.InstructorProfile{}
		if r.Department != nil {
			profile.Department = *r.Department
		}
		if r.DateOfEmployment != nil {
			profile.DateOfEmployment = *r.DateOfEmployment
		}
		user.Instructor = profile
	case model.RoleAdmin:
		profile := &model.AdminProfile{}
		if r.Telephone != nil {
			profile.Telephone = *r.Telephone
		}
		user.Admin = profile
	}
	return user, nil
}
