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

// ErrReportNotOpen is returned when an update targets a non-open report.
var ErrReportNotOpen = errors.New("only open reports can be modified")

// ListReports returns the user's reports, newest first, optionally filtered
// by status. The reporter id is always bound server-side.
func (s *Service) ListReports(ctx context.Context, userID int64, statusFilter string) ([]*models.Report, error) {
	query := `SELECT id, reporter_id, title, content, status, comment, resolved_by, resolved_at, created_at, updated_at
	          FROM reports WHERE reporter_id = ?`
	args := []interface{}{userID}
	if statusFilter != "" {
		query += ` AND status = ?`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		r := new(models.Report)
		if err := rows.Scan(&r.ID, &r.ReporterID, &r.Title, &r.Content, &r.Status, &r.Comment, &r.ResolvedBy, &r.ResolvedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetReport fetches one report owned by the user.
func (s *Service) GetReport(ctx context.Context, userID, reportID int64) (*models.Report, error) {
	r := new(models.Report)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, reporter_id, title, content, status, comment, resolved_by, resolved_at, created_at, updated_at
		 FROM reports WHERE id = ? AND reporter_id = ?`,
		reportID, userID,
	).Scan(&r.ID, &r.ReporterID, &r.Title, &r.Content, &r.Status, &r.Comment, &r.ResolvedBy, &r.ResolvedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// CreateReport files a new open report for the user.
func (s *Service) CreateReport(ctx context.Context, userID int64, title, content string) (*models.Report, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, errors.New("title and content are required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (reporter_id, title, content, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, title, content, models.ReportOpen, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("report id: %w", err)
	}
	return &models.Report{
		ID:         id,
		ReporterID: userID,
		Title:      title,
		Content:    content,
		Status:     models.ReportOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UpdateReport changes the title and/or content of one of the user's open
// reports. Non-open reports are rejected with ErrReportNotOpen.
func (s *Service) UpdateReport(ctx context.Context, userID, reportID int64, title, content string) (*models.Report, error) {
	report, err := s.GetReport(ctx, userID, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportOpen {
		return nil, ErrReportNotOpen
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" && content == "" {
		return nil, errors.New("nothing to update")
	}
	if title != "" {
		report.Title = title
	}
	if content != "" {
		report.Content = content
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE reports SET title = ?, content = ?, updated_at = ? WHERE id = ? AND reporter_id = ?`,
		report.Title, report.Content, now, reportID, userID,
	); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	report.UpdatedAt = now
	return report, nil
}
