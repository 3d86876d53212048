package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"imageGateway/api/database"
	"imageGateway/api/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateRequest(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO requests (id, session_id, trace_id, kind, prompt, style, aspect_ratio, size, image_urls, provider_task, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		req.ID,
		req.SessionID,
		req.TraceID,
		req.Kind,
		req.Prompt,
		req.Style,
		req.AspectRatio,
		req.Size,
		req.ImageURLs,
		req.ProviderTask,
		req.Status,
		req.ErrorMessage,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *PostgresRepo) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	query := `
		SELECT id, session_id, trace_id, kind, prompt, style, aspect_ratio, size, image_urls, provider_task, status, error_message, created_at, updated_at, completed_at
		FROM requests
		WHERE id = $1
	`

	req, err := scanRequest(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *PostgresRepo) ListRequestsBySession(ctx context.Context, sessionID string, limit int) ([]*models.Request, error) {
	query := `
		SELECT id, session_id, trace_id, kind, prompt, style, aspect_ratio, size, image_urls, provider_task, status, error_message, created_at, updated_at, completed_at
		FROM requests
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *PostgresRepo) AttachProviderTask(ctx context.Context, id string, taskID string) error {
	query := `
		UPDATE requests
		SET provider_task = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Pool.Exec(ctx, query, taskID, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

func (r *PostgresRepo) UpdateRequestStatus(ctx context.Context, id string, status models.TaskStatus, errorMessage string) error {
	query := `
		UPDATE requests
		SET status = $1, error_message = $2, updated_at = NOW()
	`

	if status.Terminal() {
		query += `, completed_at = NOW()`
	}

	query += ` WHERE id = $3`

	result, err := r.db.Pool.Exec(ctx, query, status, errorMessage, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var req models.Request
	err := row.Scan(
		&req.ID,
		&req.SessionID,
		&req.TraceID,
		&req.Kind,
		&req.Prompt,
		&req.Style,
		&req.AspectRatio,
		&req.Size,
		&req.ImageURLs,
		&req.ProviderTask,
		&req.Status,
		&req.ErrorMessage,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
