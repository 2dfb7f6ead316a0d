package models

import (
	"database/sql"
	"time"
)

type ReportStatus string

const (
	ReportOpen       ReportStatus = "open"
	ReportInProgress ReportStatus = "in_progress"
	ReportResolved   ReportStatus = "resolved"
)

// Report is a user-filed issue report. Only open reports may be updated.
type Report struct {
	ID         int64         `json:"id"`
	ReporterID int64         `json:"reporter_id"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	Status     ReportStatus  `json:"status"`
	Comment    sql.NullString `json:"comment"`
	ResolvedBy sql.NullInt64  `json:"resolved_by"`
	ResolvedAt sql.NullTime   `json:"resolved_at"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// User carries only the fields the pipeline reads.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
}
