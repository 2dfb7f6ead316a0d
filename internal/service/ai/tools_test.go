package ai

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"aimessage/internal/models"
	"aimessage/internal/service/messaging"
)

// memReportStore is an in-memory ReportStore with the same ownership and
// open-only rules as the SQL-backed one.
type memReportStore struct {
	nextID  int64
	reports map[int64]*models.Report
}

func newMemReportStore() *memReportStore {
	return &memReportStore{nextID: 1, reports: make(map[int64]*models.Report)}
}

func (m *memReportStore) ListReports(ctx context.Context, userID int64, statusFilter string) ([]*models.Report, error) {
	var out []*models.Report
	for _, r := range m.reports {
		if r.ReporterID != userID {
			continue
		}
		if statusFilter != "" && string(r.Status) != statusFilter {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memReportStore) GetReport(ctx context.Context, userID, reportID int64) (*models.Report, error) {
	r, ok := m.reports[reportID]
	if !ok || r.ReporterID != userID {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *memReportStore) CreateReport(ctx context.Context, userID int64, title, content string) (*models.Report, error) {
	r := &models.Report{
		ID:         m.nextID,
		ReporterID: userID,
		Title:      title,
		Content:    content,
		Status:     models.ReportOpen,
		CreatedAt:  time.Now(),
	}
	m.nextID++
	m.reports[r.ID] = r
	return r, nil
}

func (m *memReportStore) UpdateReport(ctx context.Context, userID, reportID int64, title, content string) (*models.Report, error) {
	r, ok := m.reports[reportID]
	if !ok || r.ReporterID != userID {
		return nil, sql.ErrNoRows
	}
	if r.Status != models.ReportOpen {
		return nil, messaging.ErrReportNotOpen
	}
	if title != "" {
		r.Title = title
	}
	if content != "" {
		r.Content = content
	}
	return r, nil
}

func runTool(t *testing.T, exec *Executor, name, args string, userID int64) string {
	t.Helper()
	result, err := exec.Execute(context.Background(), name, args, userID)
	if err != nil {
		t.Fatalf("run %s: %v", name, err)
	}
	return result
}

func TestReportAgentToolRoundTrip(t *testing.T) {
	store := newMemReportStore()
	agent := NewReportAgent(store)
	exec := NewExecutor()
	exec.RegisterAgentTools(agent)

	if got := runTool(t, exec, "get_my_reports", `{}`, 5); got != "You have no reports." {
		t.Fatalf("unexpected empty listing: %q", got)
	}

	created := runTool(t, exec, "create_report",
		`{"title": "Low water flow", "content": "Building 1, noticed this morning"}`, 5)
	if !strings.Contains(created, "Report created successfully!") || !strings.Contains(created, "Low water flow") {
		t.Fatalf("unexpected create confirmation: %q", created)
	}

	listing := runTool(t, exec, "get_my_reports", `{}`, 5)
	if !strings.Contains(listing, "Your Reports:") || !strings.Contains(listing, "Low water flow") {
		t.Fatalf("report missing from listing: %q", listing)
	}

	detail := runTool(t, exec, "get_report", `{"report_id": 1}`, 5)
	if !strings.Contains(detail, "Report Details:") || !strings.Contains(detail, "Building 1") {
		t.Fatalf("unexpected detail output: %q", detail)
	}

	updated := runTool(t, exec, "update_report", `{"report_id": 1, "title": "No water flow"}`, 5)
	if !strings.Contains(updated, "updated successfully") || !strings.Contains(updated, "No water flow") {
		t.Fatalf("unexpected update output: %q", updated)
	}
}

func TestReportAgentToolsAreUserScoped(t *testing.T) {
	store := newMemReportStore()
	agent := NewReportAgent(store)
	exec := NewExecutor()
	exec.RegisterAgentTools(agent)

	runTool(t, exec, "create_report", `{"title": "Mine", "content": "details"}`, 5)

	// another user cannot see or touch it
	got := runTool(t, exec, "get_report", `{"report_id": 1}`, 6)
	if !strings.Contains(got, "not found or you don't have access") {
		t.Fatalf("foreign report visible: %q", got)
	}
	got = runTool(t, exec, "update_report", `{"report_id": 1, "title": "hijack"}`, 6)
	if !strings.Contains(got, "not found or you don't have access") {
		t.Fatalf("foreign report updatable: %q", got)
	}
}

func TestReportAgentUpdateClosedReport(t *testing.T) {
	store := newMemReportStore()
	agent := NewReportAgent(store)
	exec := NewExecutor()
	exec.RegisterAgentTools(agent)

	runTool(t, exec, "create_report", `{"title": "Done already", "content": "resolved issue"}`, 5)
	store.reports[1].Status = models.ReportResolved

	got := runTool(t, exec, "update_report", `{"report_id": 1, "title": "reopen"}`, 5)
	if !strings.Contains(got, "Only open reports can be modified") {
		t.Fatalf("closed report update not refused: %q", got)
	}
}

func TestReportAgentStatusFilter(t *testing.T) {
	store := newMemReportStore()
	agent := NewReportAgent(store)
	exec := NewExecutor()
	exec.RegisterAgentTools(agent)

	runTool(t, exec, "create_report", `{"title": "First", "content": "a"}`, 5)
	runTool(t, exec, "create_report", `{"title": "Second", "content": "b"}`, 5)
	store.reports[1].Status = models.ReportResolved

	got := runTool(t, exec, "get_my_reports", `{"status_filter": "open"}`, 5)
	if strings.Contains(got, "First") || !strings.Contains(got, "Second") {
		t.Fatalf("status filter not applied: %q", got)
	}

	// values outside the declared enum are rejected before the store is hit
	if _, err := exec.Execute(context.Background(), "get_my_reports", `{"status_filter": "bogus"}`, 5); err == nil {
		t.Fatalf("expected enum validation failure")
	}
}
