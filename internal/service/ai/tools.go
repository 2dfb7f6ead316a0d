package ai

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"aimessage/internal/models"
	"aimessage/internal/service/messaging"

	"github.com/cloudwego/eino/schema"
)

// ReportStore is what the report agent tools need from persistence. Every
// operation is scoped to the owning user.
type ReportStore interface {
	ListReports(ctx context.Context, userID int64, statusFilter string) ([]*models.Report, error)
	GetReport(ctx context.Context, userID, reportID int64) (*models.Report, error)
	CreateReport(ctx context.Context, userID int64, title, content string) (*models.Report, error)
	UpdateReport(ctx context.Context, userID, reportID int64, title, content string) (*models.Report, error)
}

const reportAgentPrompt = `You are a Report Management Assistant for a school facilities management system.

Your primary job: when a user wants to report an issue, CREATE A REPORT using the create_report function.

Rules:
1. Never draft emails or suggest other methods; create the report.
2. Ask at most one question for missing info (location, when noticed), then immediately call create_report.
3. After calling create_report, confirm to the user with the report ID, title and status.
4. Use get_my_reports when the user asks to see their reports, get_report for details of a specific one, and update_report to change an open report.
Plain text only, no special characters or emojis.`

// NewReportAgent builds the report management agent with its tool set.
func NewReportAgent(store ReportStore) *Agent {
	return &Agent{
		Name:         "report_agent",
		Description:  "Report management - list, view, create and update user reports",
		SystemPrompt: reportAgentPrompt,
		Keywords: []string{
			"report", "my reports", "list reports", "show report",
			"update report", "edit report",
		},
		Tools: []*ToolSpec{
			{
				Name:        "get_my_reports",
				Description: "Get all reports for the current user. Call this when the user asks to see their reports.",
				Params: map[string]*schema.ParameterInfo{
					"status_filter": {
						Type:     schema.String,
						Desc:     "Filter reports by status (optional)",
						Enum:     []string{"open", "in_progress", "resolved"},
						Required: false,
					},
				},
				Run: func(ctx context.Context, userID int64, args map[string]interface{}) (string, error) {
					reports, err := store.ListReports(ctx, userID, argString(args, "status_filter"))
					if err != nil {
						return "", fmt.Errorf("list reports: %w", err)
					}
					if len(reports) == 0 {
						return "You have no reports.", nil
					}
					var b strings.Builder
					b.WriteString("Your Reports:\n\n")
					for _, r := range reports {
						fmt.Fprintf(&b, "ID: #%d\n", r.ID)
						fmt.Fprintf(&b, "Title: %s\n", r.Title)
						fmt.Fprintf(&b, "Status: %s\n", r.Status)
						fmt.Fprintf(&b, "Created: %s\n", r.CreatedAt.Format("2006-01-02 15:04"))
						b.WriteString(strings.Repeat("-", 30) + "\n")
					}
					return b.String(), nil
				},
			},
			{
				Name:        "get_report",
				Description: "Get details of a specific report by ID.",
				Params: map[string]*schema.ParameterInfo{
					"report_id": {
						Type:     schema.Integer,
						Desc:     "The report ID to retrieve (number only, e.g. 23)",
						Required: true,
					},
				},
				Run: func(ctx context.Context, userID int64, args map[string]interface{}) (string, error) {
					reportID := argInt64(args, "report_id")
					report, err := store.GetReport(ctx, userID, reportID)
					if err != nil {
						if errors.Is(err, sql.ErrNoRows) {
							return fmt.Sprintf("Report #%d not found or you don't have access to it.", reportID), nil
						}
						return "", fmt.Errorf("get report: %w", err)
					}
					var b strings.Builder
					b.WriteString("Report Details:\n\n")
					fmt.Fprintf(&b, "ID: #%d\n", report.ID)
					fmt.Fprintf(&b, "Title: %s\n", report.Title)
					fmt.Fprintf(&b, "Content: %s\n", report.Content)
					fmt.Fprintf(&b, "Status: %s\n", report.Status)
					fmt.Fprintf(&b, "Created: %s\n", report.CreatedAt.Format("2006-01-02 15:04"))
					if report.Comment.Valid && report.Comment.String != "" {
						fmt.Fprintf(&b, "\nAdmin Comment: %s\n", report.Comment.String)
					}
					if report.ResolvedAt.Valid {
						fmt.Fprintf(&b, "Resolved at: %s\n", report.ResolvedAt.Time.Format("2006-01-02 15:04"))
					}
					return b.String(), nil
				},
			},
			{
				Name:        "create_report",
				Description: "Create a new report in the system. Always call this when the user wants to file a report.",
				Params: map[string]*schema.ParameterInfo{
					"title": {
						Type:     schema.String,
						Desc:     "Brief title (max 100 chars) like 'Low water flow at Building 1'",
						Required: true,
					},
					"content": {
						Type:     schema.String,
						Desc:     "Detailed description including location, when noticed, and severity",
						Required: true,
					},
				},
				Run: func(ctx context.Context, userID int64, args map[string]interface{}) (string, error) {
					report, err := store.CreateReport(ctx, userID, argString(args, "title"), argString(args, "content"))
					if err != nil {
						return "", fmt.Errorf("create report: %w", err)
					}
					return fmt.Sprintf(
						"Report created successfully!\n\nID: #%d\nTitle: %s\nStatus: %s\n\nYour report has been submitted and will be reviewed by the admin.",
						report.ID, report.Title, report.Status,
					), nil
				},
			},
			{
				Name:        "update_report",
				Description: "Update an existing report's title or content (only for open reports)",
				Params: map[string]*schema.ParameterInfo{
					"report_id": {
						Type:     schema.Integer,
						Desc:     "The report ID to update",
						Required: true,
					},
					"title": {
						Type:     schema.String,
						Desc:     "New title (optional)",
						Required: false,
					},
					"content": {
						Type:     schema.String,
						Desc:     "New content (optional)",
						Required: false,
					},
				},
				Run: func(ctx context.Context, userID int64, args map[string]interface{}) (string, error) {
					reportID := argInt64(args, "report_id")
					report, err := store.UpdateReport(ctx, userID, reportID, argString(args, "title"), argString(args, "content"))
					if err != nil {
						if errors.Is(err, sql.ErrNoRows) {
							return fmt.Sprintf("Report #%d not found or you don't have access to it.", reportID), nil
						}
						if errors.Is(err, messaging.ErrReportNotOpen) {
							return fmt.Sprintf("Cannot update report #%d. Only open reports can be modified.", reportID), nil
						}
						return "", fmt.Errorf("update report: %w", err)
					}
					return fmt.Sprintf(
						"Report #%d updated successfully!\n\nTitle: %s\nContent: %s",
						report.ID, report.Title, report.Content,
					), nil
				},
			},
		},
	}
}
