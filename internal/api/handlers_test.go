package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"aimessage/internal/models"
	"aimessage/internal/service/messaging"
	"aimessage/internal/storage"
	"aimessage/internal/worker"

	_ "github.com/mattn/go-sqlite3"
)

type fakePipeline struct {
	mu        sync.Mutex
	tasks     []*worker.DispatchTask
	cancelled []int64
	busy      bool
	syncReply string
}

func (f *fakePipeline) Submit(task *worker.DispatchTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return worker.ErrDispatcherBusy
	}
	f.tasks = append(f.tasks, task)
	if task.ReplyCh != nil {
		task.ReplyCh <- f.syncReply
	}
	return nil
}

func (f *fakePipeline) CancelUser(userID int64) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, userID)
	f.mu.Unlock()
}

func (f *fakePipeline) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

type fakeHistory struct {
	mu      sync.Mutex
	cleared []int64
}

func (f *fakeHistory) Clear(userID int64) {
	f.mu.Lock()
	f.cleared = append(f.cleared, userID)
	f.mu.Unlock()
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeDeduper) Seen(ctx context.Context, messageSID string) bool {
	if messageSID == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[messageSID] {
		return true
	}
	f.seen[messageSID] = true
	return false
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB, *fakePipeline, *fakeHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := messaging.NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	pipeline := &fakePipeline{syncReply: "pipeline reply"}
	history := &fakeHistory{}
	handler := NewHandler(svc, pipeline, history, &fakeDeduper{}, -1)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, pipeline, history
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, db, _, _ := newTestServer(t)
	defer db.Close()

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestWebhookAcceptsKnownSender(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()

	svc, _ := messaging.NewService(db)
	if _, err := svc.CreateUser(context.Background(), "alice", "", "+15550001"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	rec := doForm(t, router, "/webhook/sms", url.Values{
		"From":       {"+15550001"},
		"Body":       {"hello bot"},
		"MessageSid": {"SM1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Fatalf("expected empty TwiML ack, got %q", rec.Body.String())
	}
	if pipeline.taskCount() != 1 {
		t.Fatalf("expected 1 task, got %d", pipeline.taskCount())
	}
	task := pipeline.tasks[0]
	if task.Dispatch.Channel != models.ChannelWebhook || task.Dispatch.IsWhatsApp {
		t.Fatalf("unexpected dispatch context: %#v", task.Dispatch)
	}
	if task.Msg.ID == 0 {
		t.Fatalf("inbound message not persisted before dispatch")
	}
}

func TestWebhookWhatsAppDetection(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()

	svc, _ := messaging.NewService(db)
	if _, err := svc.CreateUser(context.Background(), "bob", "", "+15550002"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	rec := doForm(t, router, "/webhook/sms", url.Values{
		"From": {"whatsapp:+15550002"},
		"Body": {"hi"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if pipeline.taskCount() != 1 || !pipeline.tasks[0].Dispatch.IsWhatsApp {
		t.Fatalf("whatsapp sender not detected")
	}
}

func TestWebhookDeduplicatesRetries(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()

	svc, _ := messaging.NewService(db)
	if _, err := svc.CreateUser(context.Background(), "carol", "", "+15550003"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	form := url.Values{
		"From":       {"+15550003"},
		"Body":       {"hello"},
		"MessageSid": {"SM42"},
	}
	first := doForm(t, router, "/webhook/sms", form)
	second := doForm(t, router, "/webhook/sms", form)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("retry not acked: %d / %d", first.Code, second.Code)
	}
	if pipeline.taskCount() != 1 {
		t.Fatalf("retry was dispatched again: %d tasks", pipeline.taskCount())
	}
}

func TestWebhookUnknownSenderIsDropped(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()

	rec := doForm(t, router, "/webhook/sms", url.Values{
		"From": {"+19999999"},
		"Body": {"who am i"},
	})
	// still acked so the provider stops retrying
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if pipeline.taskCount() != 0 {
		t.Fatalf("unknown sender was dispatched")
	}
}

func TestWebhookMissingFields(t *testing.T) {
	router, db, _, _ := newTestServer(t)
	defer db.Close()

	rec := doForm(t, router, "/webhook/sms", url.Values{"From": {"+15550001"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestChatReturnsReply(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()

	rec := doJSON(t, router, http.MethodPost, "/api/users/7/chat", map[string]string{"content": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Reply          string `json:"reply"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Reply != "pipeline reply" {
		t.Fatalf("unexpected reply %q", body.Reply)
	}
	if body.ConversationID != "conv_-1_7" {
		t.Fatalf("unexpected conversation id %q", body.ConversationID)
	}
	if pipeline.tasks[0].Dispatch.Channel != models.ChannelSync {
		t.Fatalf("chat not dispatched on sync channel")
	}
}

func TestChatBusy(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()
	pipeline.busy = true

	rec := doJSON(t, router, http.MethodPost, "/api/users/7/chat", map[string]string{"content": "hello"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestPostMessageAccepted(t *testing.T) {
	router, db, pipeline, _ := newTestServer(t)
	defer db.Close()

	rec := doJSON(t, router, http.MethodPost, "/api/users/7/messages", map[string]string{"content": "async hello"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if pipeline.taskCount() != 1 || pipeline.tasks[0].Dispatch.Channel != models.ChannelWeb {
		t.Fatalf("web message not dispatched")
	}
}

func TestPostMessageValidation(t *testing.T) {
	router, db, _, _ := newTestServer(t)
	defer db.Close()

	if rec := doJSON(t, router, http.MethodPost, "/api/users/7/messages", map[string]string{"content": "  "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank content accepted: %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/api/users/0/messages", map[string]string{"content": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid user id accepted: %d", rec.Code)
	}
}

func TestGetConversationMessagesMarksRead(t *testing.T) {
	router, db, _, _ := newTestServer(t)
	defer db.Close()

	svc, _ := messaging.NewService(db)
	convID := messaging.ConversationID(7, -1)
	if _, err := svc.SaveReply(context.Background(), -1, 7, convID, models.ChannelWeb, "unread reply"); err != nil {
		t.Fatalf("save reply: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/users/7/conversations/"+convID+"/messages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "unread reply" {
		t.Fatalf("unexpected messages: %#v", body.Messages)
	}

	count, err := svc.UnreadCount(context.Background(), 7)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Fatalf("fetch did not mark messages read: %d unread", count)
	}
}

func TestGetConversationMessagesLimitValidation(t *testing.T) {
	router, db, _, _ := newTestServer(t)
	defer db.Close()

	rec := doJSON(t, router, http.MethodGet, "/api/users/7/conversations/conv_-1_7/messages?limit=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 accepted: %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/users/7/conversations/conv_-1_7/messages?limit=9999", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized limit accepted: %d", rec.Code)
	}
}

func TestClearHistory(t *testing.T) {
	router, db, pipeline, history := newTestServer(t)
	defer db.Close()

	rec := doJSON(t, router, http.MethodDelete, "/api/users/7/history", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.cleared) != 1 || history.cleared[0] != 7 {
		t.Fatalf("history not cleared: %v", history.cleared)
	}
	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	if len(pipeline.cancelled) != 1 || pipeline.cancelled[0] != 7 {
		t.Fatalf("pending jobs not cancelled: %v", pipeline.cancelled)
	}
}
