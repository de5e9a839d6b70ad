package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bapmate/internal/model"
)

const userColumns = `id, email, name, region, mbti, bio, color, security_question,
		security_answer_hash, password_hash, temp_password_hash, created_at, updated_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a user whose ID has been assigned by the caller.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, name, region, mbti, bio, color, security_question,
		                   security_answer_hash, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		u.ID,
		u.Email,
		u.Name,
		u.Region,
		u.MBTI,
		u.Bio,
		u.Color,
		u.SecurityQuestion,
		u.SecurityAnswerHash,
		u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailExists
		}
		return dbError("failed to insert user", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// GetFirstByName returns the earliest registered user with the exact name.
func (r *userRepository) GetFirstByName(ctx context.Context, name string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1 ORDER BY created_at ASC LIMIT 1`, name)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, dbError("failed to get user", err)
	}
	return &u, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []string) ([]model.UserSummary, error) {
	if len(ids) == 0 {
		return []model.UserSummary{}, nil
	}
	query := `SELECT id, name, color FROM users WHERE id = ANY($1::uuid[])`

	var users []model.UserSummary
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, dbError("failed to get user summaries", err)
	}
	return users, nil
}

// UpdateProfile applies the non-nil fields of req.
func (r *userRepository) UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.User, error) {
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			region = COALESCE($3, region),
			mbti = COALESCE($4, mbti),
			bio = COALESCE($5, bio),
			color = COALESCE($6, color),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id, req.Name, req.Region, req.MBTI, req.Bio, req.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, dbError("failed to update profile", err)
	}
	return &u, nil
}

func (r *userRepository) SetPassword(ctx context.Context, id, passwordHash string, tempPasswordHash *string) error {
	query := `
		UPDATE users
		SET password_hash = $2, temp_password_hash = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, passwordHash, tempPasswordHash)
	if err != nil {
		return dbError("failed to set password", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return dbError("failed to get rows affected", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return dbError("failed to delete user", err)
	}
	return nil
}
