package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"avatar-service/internal/db"
	"avatar-service/internal/models"
)

var ErrNotFound = errors.New("user not found")

// Users is the user record store. Only avatar_url is ever mutated here;
// user creation and deletion happen outside this service.
type Users interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// UpdateAvatar sets avatar_url and returns the updated record together
	// with the previous avatar_url so the caller can drop the superseded file.
	UpdateAvatar(ctx context.Context, id string, avatarURL string) (*models.User, *string, error)
}

type PostgresUsers struct {
	db *db.DB
}

func NewPostgresUsers(dbConn *db.DB) *PostgresUsers {
	return &PostgresUsers{db: dbConn}
}

func (s *PostgresUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, username, avatar_url, created_at
		 FROM users
		 WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresUsers) UpdateAvatar(ctx context.Context, id string, avatarURL string) (*models.User, *string, error) {
	var u models.User
	var previous *string
	err := s.db.Pool.QueryRow(ctx,
		`UPDATE users u
		 SET avatar_url = $2
		 FROM (SELECT avatar_url FROM users WHERE id = $1) old
		 WHERE u.id = $1
		 RETURNING u.id, u.username, u.avatar_url, u.created_at, old.avatar_url`,
		id, avatarURL,
	).Scan(&u.ID, &u.Username, &u.AvatarURL, &u.CreatedAt, &previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &u, previous, nil
}
