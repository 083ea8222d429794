package email

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/structs"
)

type fakeSender struct {
	sendFn func(ctx context.Context, recipient string, msg Message) (string, error)
}

func (f *fakeSender) Send(ctx context.Context, recipient string, msg Message) (string, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, recipient, msg)
	}
	return "msg-1", nil
}

func newNotifierRepo(t *testing.T) repository.JobRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repository.New(db, "sqlite")
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo
}

func finishJob(t *testing.T, repo repository.JobRepository, notifyEmail, outputPath, errMsg string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := repo.Create(ctx, &structs.Job{
		SpaceID:     "1abc",
		Kind:        structs.KindSpaceDownload,
		NotifyEmail: notifyEmail,
		Payload:     map[string]any{},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if errMsg != "" {
		if err := repo.Fail(ctx, id, errMsg); err != nil {
			t.Fatalf("fail: %v", err)
		}
		return id
	}
	if err := repo.Complete(ctx, id, outputPath); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return id
}

func TestNotifierSendsCompletionNotice(t *testing.T) {
	repo := newNotifierRepo(t)
	id := finishJob(t, repo, "owner@example.com", "/archives/space.mp3", "")

	var gotRecipient string
	var gotMsg Message
	sender := &fakeSender{sendFn: func(ctx context.Context, recipient string, msg Message) (string, error) {
		gotRecipient = recipient
		gotMsg = msg
		return "msg-42", nil
	}}

	n := NewNotifier(sender, repo, nil, "spacearc")
	err := n.handle(context.Background(), &event.Event{Type: event.EventTypeJobCompleted, JobID: id})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if gotRecipient != "owner@example.com" {
		t.Errorf("recipient = %q", gotRecipient)
	}
	if !strings.Contains(gotMsg.Subject, "ready") {
		t.Errorf("subject = %q", gotMsg.Subject)
	}
	if !strings.Contains(gotMsg.Body, "/archives/space.mp3") {
		t.Errorf("body missing output path: %q", gotMsg.Body)
	}
}

func TestNotifierSendsFailureNotice(t *testing.T) {
	repo := newNotifierRepo(t)
	id := finishJob(t, repo, "owner@example.com", "", "yt-dlp exploded")

	var gotMsg Message
	sender := &fakeSender{sendFn: func(ctx context.Context, recipient string, msg Message) (string, error) {
		gotMsg = msg
		return "", nil
	}}

	n := NewNotifier(sender, repo, nil, "spacearc")
	if err := n.handle(context.Background(), &event.Event{Type: event.EventTypeJobFailed, JobID: id}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(gotMsg.Subject, "failed") {
		t.Errorf("subject = %q", gotMsg.Subject)
	}
	if !strings.Contains(gotMsg.Body, "yt-dlp exploded") {
		t.Errorf("body missing error: %q", gotMsg.Body)
	}
}

func TestNotifierSkipsJobsWithoutAddress(t *testing.T) {
	repo := newNotifierRepo(t)
	id := finishJob(t, repo, "", "/archives/space.mp3", "")

	sent := false
	sender := &fakeSender{sendFn: func(ctx context.Context, recipient string, msg Message) (string, error) {
		sent = true
		return "", nil
	}}

	n := NewNotifier(sender, repo, nil, "spacearc")
	if err := n.handle(context.Background(), &event.Event{Type: event.EventTypeJobCompleted, JobID: id}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sent {
		t.Error("notice sent for a job without a notification address")
	}
}

func TestNotifierSurfacesSendErrors(t *testing.T) {
	repo := newNotifierRepo(t)
	id := finishJob(t, repo, "owner@example.com", "/archives/space.mp3", "")

	sender := &fakeSender{sendFn: func(ctx context.Context, recipient string, msg Message) (string, error) {
		return "", errors.New("smtp timeout")
	}}

	n := NewNotifier(sender, repo, nil, "spacearc")
	err := n.handle(context.Background(), &event.Event{Type: event.EventTypeJobCompleted, JobID: id})
	if err == nil {
		t.Fatal("expected send error to surface")
	}

	// The job row stays untouched by the failed notice.
	job, ferr := repo.FindByID(context.Background(), id)
	if ferr != nil {
		t.Fatalf("find: %v", ferr)
	}
	if job.Status != structs.StatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
}

func TestNewSenderSelection(t *testing.T) {
	if _, err := NewSender(nil); err == nil {
		t.Error("nil config must error")
	}
	if _, err := NewSender(&Email{Provider: "carrier-pigeon"}); err == nil {
		t.Error("unknown provider must error")
	}
	if _, err := NewSender(&Email{Provider: "smtp"}); err == nil {
		t.Error("incomplete smtp config must error")
	}

	sender, err := NewSender(&Email{
		Provider: "smtp",
		SMTP: SMTPConfig{
			SMTPHost: "smtp.example.com",
			SMTPPort: "587",
			From:     "notices@example.com",
		},
	})
	if err != nil {
		t.Fatalf("smtp sender: %v", err)
	}
	if _, ok := sender.(*LocalSMTPSender); !ok {
		t.Errorf("sender type = %T", sender)
	}
}
