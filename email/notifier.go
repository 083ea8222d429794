package email

import (
	"context"
	"fmt"

	"github.com/ncobase/spacearc/event"
	"github.com/ncobase/spacearc/job/data/repository"
	"github.com/ncobase/spacearc/job/structs"
	"github.com/ncobase/spacearc/logging/logger"
)

// Notifier mails the enqueuer when a job finishes. Delivery problems are
// logged and never touch job state.
type Notifier struct {
	sender  Sender
	repo    repository.JobRepository
	logger  *logger.Logger
	appName string
}

// NewNotifier creates a notifier. A nil sender disables notifications.
func NewNotifier(sender Sender, repo repository.JobRepository, log *logger.Logger, appName string) *Notifier {
	if log == nil {
		log = logger.StdLogger()
	}
	if appName == "" {
		appName = "spacearc"
	}
	return &Notifier{sender: sender, repo: repo, logger: log, appName: appName}
}

// Register subscribes the notifier to the terminal lifecycle events.
func (n *Notifier) Register(bus *event.Bus) {
	if n.sender == nil {
		return
	}
	bus.Subscribe(event.EventTypeJobCompleted, n.handle)
	bus.Subscribe(event.EventTypeJobFailed, n.handle)
	bus.Subscribe(event.EventTypeJobReaped, n.handle)
}

func (n *Notifier) handle(ctx context.Context, e *event.Event) error {
	// The event carries a snapshot; the row has the notification address
	// and the final output path.
	job, err := n.repo.FindByID(ctx, e.JobID)
	if err != nil {
		return fmt.Errorf("load job %d for notice: %w", e.JobID, err)
	}
	if job.NotifyEmail == "" {
		return nil
	}

	msg := n.compose(job)
	id, err := n.sender.Send(ctx, job.NotifyEmail, msg)
	if err != nil {
		n.logger.Error(ctx, "failed to send job notice",
			"job_id", job.ID, "recipient", job.NotifyEmail, "error", err)
		return err
	}
	n.logger.Info(ctx, "job notice sent",
		"job_id", job.ID, "recipient", job.NotifyEmail, "message_id", id)
	return nil
}

func (n *Notifier) compose(job *structs.Job) Message {
	switch job.Status {
	case structs.StatusCompleted:
		return Message{
			Subject: fmt.Sprintf("[%s] %s for space %s is ready", n.appName, job.Kind, job.SpaceID),
			Body: fmt.Sprintf("Your %s job #%d for space %s finished successfully.\nOutput: %s\n",
				job.Kind, job.ID, job.SpaceID, job.OutputPath),
		}
	default:
		return Message{
			Subject: fmt.Sprintf("[%s] %s for space %s failed", n.appName, job.Kind, job.SpaceID),
			Body: fmt.Sprintf("Your %s job #%d for space %s did not finish.\nError: %s\nYou can submit the job again from the status page.\n",
				job.Kind, job.ID, job.SpaceID, job.Error),
		}
	}
}
