package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"aimessage/internal/models"
)

// FindUserByPhone resolves the owner of a phone number as reported by the
// webhook provider. The "whatsapp:" prefix is stripped before matching.
func (s *Service) FindUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	if phone == "" {
		return nil, errors.New("phone number is required")
	}
	u := new(models.User)
	var fullName, phoneNumber sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, phone_number FROM users WHERE phone_number = ?`,
		phone,
	).Scan(&u.ID, &u.Username, &fullName, &phoneNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	u.FullName = fullName.String
	u.PhoneNumber = phoneNumber.String
	return u, nil
}

// CreateUser inserts a user row. Only the fields the pipeline reads are kept.
func (s *Service) CreateUser(ctx context.Context, username, fullName, phone string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, full_name, phone_number, created_at) VALUES (?, ?, ?, ?)`,
		username, fullName, phone, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Username: username, FullName: fullName, PhoneNumber: phone}, nil
}
