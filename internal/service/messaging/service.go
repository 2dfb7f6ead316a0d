package messaging

import (
	"database/sql"
	"errors"
	"fmt"
)

// Service provides raw-SQL access to message, report and user rows. It is the
// pipeline's view of the relational store; CRUD surfaces beyond what the
// dispatch path needs live elsewhere.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Service{db: db}, nil
}

// ConversationID builds the deterministic conversation key for a user pair,
// lower id first.
func ConversationID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("conv_%d_%d", a, b)
}
