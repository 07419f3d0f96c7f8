package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feedpress/apiserver/types"
)

const postColumns = `
		p.id, p.title, p.content, p.image_url, p.creator_id, p.created_at, p.updated_at,
		u.id, u.email, u.name, u.status, u.created_at, u.updated_at`

// PostRepository handles persistence for posts. Post writes that touch
// the ownership index run in a single transaction.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns one window of posts, newest first, and the total number of
// posts. The count and the window are separate reads and may drift apart
// under concurrent writes.
func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 2
	}

	const countQuery = `SELECT COUNT(1) FROM posts`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	listQuery := `
		SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.creator_id
		ORDER BY p.created_at DESC, p.id DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]types.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *PostRepository) Get(ctx context.Context, id int64) (types.Post, error) {
	query := `
		SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.creator_id
		WHERE p.id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// Create inserts the post and appends it to its creator's ownership index.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const insertPost = `
			INSERT INTO posts (title, content, image_url, creator_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRowContext(
			ctx,
			insertPost,
			post.Title,
			post.Content,
			post.ImageURL,
			post.CreatorID,
		).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}

		const indexPost = `INSERT INTO user_posts (user_id, post_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, indexPost, post.CreatorID, post.ID); err != nil {
			return fmt.Errorf("index post for owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// Update overwrites the mutable fields of a post. CreatorID is never
// written.
func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		UPDATE posts
		SET title = $1,
			content = $2,
			image_url = $3,
			updated_at = NOW()
		WHERE id = $4
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Content,
		post.ImageURL,
		post.ID,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

// Delete removes the post and its entry in ownerID's ownership index.
func (r *PostRepository) Delete(ctx context.Context, id, ownerID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const unindex = `DELETE FROM user_posts WHERE user_id = $1 AND post_id = $2`
		if _, err := tx.ExecContext(ctx, unindex, ownerID, id); err != nil {
			return fmt.Errorf("unindex post: %w", err)
		}

		const query = `DELETE FROM posts WHERE id = $1`
		result, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *PostRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var creator types.User
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.ImageURL,
		&post.CreatorID,
		&post.CreatedAt,
		&post.UpdatedAt,
		&creator.ID,
		&creator.Email,
		&creator.Name,
		&creator.Status,
		&creator.CreatedAt,
		&creator.UpdatedAt,
	); err != nil {
		return types.Post{}, err
	}
	post.Creator = &creator
	return post, nil
}
