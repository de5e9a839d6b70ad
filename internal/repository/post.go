package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"bapmate/internal/model"
)

const postColumns = `id, author_id, title, max_participants, participants_count, status, region, lat, lng, created_at`

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	query := `
		INSERT INTO posts (id, author_id, title, max_participants, status, region, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING participants_count, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.AuthorID, p.Title, p.MaxParticipants, p.Status, p.Region, p.Lat, p.Lng,
	).Scan(&p.ParticipantsCount, &p.CreatedAt)
	if err != nil {
		return dbError("failed to create post", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.db.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, dbError("failed to get post", err)
	}
	return &p, nil
}

func (r *postRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Post, error) {
	var p model.Post
	err := tx.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, dbError("failed to lock post", err)
	}
	return &p, nil
}

// List returns posts newest first. before is an exclusive created_at cursor.
func (r *postRepository) List(ctx context.Context, before *time.Time, limit int) ([]model.Post, error) {
	var (
		posts []model.Post
		err   error
	)
	if before == nil {
		query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC NULLS LAST, id DESC LIMIT $1`
		err = r.db.SelectContext(ctx, &posts, query, limit)
	} else {
		query := `SELECT ` + postColumns + ` FROM posts WHERE created_at < $1 ORDER BY created_at DESC, id DESC LIMIT $2`
		err = r.db.SelectContext(ctx, &posts, query, *before, limit)
	}
	if err != nil {
		return nil, dbError("failed to list posts", err)
	}
	return posts, nil
}

func (r *postRepository) ListForHotspots(ctx context.Context, since time.Time) ([]model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE created_at IS NULL OR created_at >= $1`

	var posts []model.Post
	if err := r.db.SelectContext(ctx, &posts, query, since); err != nil {
		return nil, dbError("failed to list posts for hotspots", err)
	}
	return posts, nil
}

func (r *postRepository) AddParticipant(ctx context.Context, tx *sqlx.Tx, postID, userID string) (bool, error) {
	query := `
		INSERT INTO post_participants (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, postID, userID)
	if err != nil {
		return false, dbError("failed to add participant", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, dbError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

func (r *postRepository) IncrementParticipants(ctx context.Context, tx *sqlx.Tx, postID string) error {
	query := `
		UPDATE posts SET
			participants_count = participants_count + 1,
			status = CASE
				WHEN max_participants > 0 AND participants_count + 1 >= max_participants THEN 'closed'
				ELSE status
			END
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, postID); err != nil {
		return dbError("failed to increment participants", err)
	}
	return nil
}

func (r *postRepository) ParticipantIDs(ctx context.Context, postID string) ([]string, error) {
	query := `SELECT user_id FROM post_participants WHERE post_id = $1 ORDER BY joined_at ASC`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, postID); err != nil {
		return nil, dbError("failed to get participants", err)
	}
	return ids, nil
}

func (r *postRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return dbError("failed to delete post", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return dbError("failed to get rows affected", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) IDsByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) ([]string, error) {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM posts WHERE author_id = $1`, authorID); err != nil {
		return nil, dbError("failed to list post ids", err)
	}
	return ids, nil
}

func (r *postRepository) DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE author_id = $1`, authorID)
	if err != nil {
		return 0, dbError("failed to delete posts", err)
	}
	return result.RowsAffected()
}
