package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medtrack/internal/domain"
	"medtrack/internal/repository"
)

const userColumns = `id, email, name, password_hash, role, is_active, created_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	p := user.Params()
	p.CreatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
INSERT INTO users (email, name, password_hash, role, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		p.Email,
		p.Name,
		p.PasswordHash,
		string(p.Role),
		p.Active,
		p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("user %s: %w", p.Email, repository.ErrAlreadyExists)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return domain.NewUser(p)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, page repository.Page) ([]domain.User, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx, `
SELECT `+userColumns+`
FROM users
ORDER BY id
LIMIT $1 OFFSET $2`,
		limitArg(page),
		page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE users
SET name = $1, email = $2
WHERE id = $3
RETURNING `+userColumns,
		name,
		email,
		id,
	)
	user, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return domain.User{}, fmt.Errorf("user %s: %w", email, repository.ErrAlreadyExists)
	}
	return user, err
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return expectAffected(res)
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res)
}

func (r *UserRepository) Stats(ctx context.Context) (repository.UserStats, error) {
	var stats repository.UserStats
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
FROM users`,
	).Scan(&stats.Total, &stats.Active)
	if err != nil {
		return repository.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

func (r *UserRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM users
WHERE created_at >= $1 AND created_at < $2`,
		from.UTC(),
		to.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (domain.User, error) {
	var (
		p    domain.UserParams
		role string
	)
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.PasswordHash,
		&role,
		&p.Active,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	p.Role = domain.Role(role)
	user, err := domain.NewUser(p)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %d: %w", p.ID, err)
	}
	return user, nil
}
