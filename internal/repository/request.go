package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bapmate/internal/model"
)

const requestColumns = `id, post_id, from_user_id, to_user_id, status, created_at, updated_at`

type requestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Create inserts a pending request. The partial unique index on
// (post_id, from_user_id) rejects a second pending or matched request.
func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	query := `
		INSERT INTO requests (id, post_id, from_user_id, to_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.PostID, req.FromUserID, req.ToUserID, req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateRequest
		}
		return dbError("failed to create request", err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	if err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRequestNotFound
		}
		return nil, dbError("failed to get request", err)
	}
	return &req, nil
}

func (r *requestRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Request, error) {
	var req model.Request
	if err := tx.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRequestNotFound
		}
		return nil, dbError("failed to lock request", err)
	}
	return &req, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id, status string) error {
	query := `UPDATE requests SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status); err != nil {
		return dbError("failed to update request status", err)
	}
	return nil
}

func (r *requestRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, dbError("failed to delete request", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, dbError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

const requestListQuery = `
	SELECT r.id, r.post_id, r.from_user_id, r.to_user_id, r.status, r.created_at, r.updated_at,
	       COALESCE(p.title, '') AS post_title,
	       COALESCE(fu.name, '') AS from_name,
	       COALESCE(tu.name, '') AS to_name
	FROM requests r
	LEFT JOIN posts p ON p.id = r.post_id
	LEFT JOIN users fu ON fu.id = r.from_user_id
	LEFT JOIN users tu ON tu.id = r.to_user_id
`

func (r *requestRepository) ListReceived(ctx context.Context, userID string) ([]model.Request, error) {
	return r.list(ctx, requestListQuery+`WHERE r.to_user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (r *requestRepository) ListSent(ctx context.Context, userID string) ([]model.Request, error) {
	return r.list(ctx, requestListQuery+`WHERE r.from_user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (r *requestRepository) list(ctx context.Context, query, userID string) ([]model.Request, error) {
	requests := []model.Request{}
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, dbError("failed to list requests", err)
	}
	return requests, nil
}

func (r *requestRepository) DeleteByPost(ctx context.Context, tx *sqlx.Tx, postID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE post_id = $1`, postID); err != nil {
		return dbError("failed to delete requests for post", err)
	}
	return nil
}

func (r *requestRepository) DeleteBySender(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE from_user_id = $1`, userID)
	if err != nil {
		return 0, dbError("failed to delete sent requests", err)
	}
	return result.RowsAffected()
}

func (r *requestRepository) DeleteByPosts(ctx context.Context, tx *sqlx.Tx, postIDs []string) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE post_id = ANY($1::uuid[])`, pq.Array(postIDs))
	if err != nil {
		return 0, dbError("failed to delete requests for posts", err)
	}
	return result.RowsAffected()
}
