package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/notiq/internal/adapter/input"
	"github.com/jmylchreest/notiq/internal/dbus"
	"github.com/jmylchreest/notiq/internal/model"
)

var sendOpts struct {
	kind      string
	projectID string
	taskID    string
	issueID   string
	priority  string
	source    string
	appName   string
	timeout   time.Duration
	quiet     bool
	stdin     bool
}

var sendCmd = &cobra.Command{
	Use:   "send TITLE [MESSAGE]",
	Short: "Send a notification to notiqd",
	Long: `Send a notification over the session bus.

The payload flags become notification hints that notiqd uses for
deduplication and for routing when the notification is opened.

Examples:
  # Plain notification
  notiq send "Backup finished"

  # Task notification that opens the task details screen
  notiq send "Review requested" "PR #12 needs a review" --type task --task-id t-1

  # High priority issue from CI
  notiq send "Build broken" --type issue --issue-id i-9 --priority high --source ci

  # Replay exported history
  notiq history -f json | notiq send --stdin`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendOpts.kind, "type", "",
		"Notification type (project, task, issue, test or any custom type)")
	sendCmd.Flags().StringVar(&sendOpts.projectID, "project-id", "",
		"Project id for --type project")
	sendCmd.Flags().StringVar(&sendOpts.taskID, "task-id", "",
		"Task id for --type task")
	sendCmd.Flags().StringVar(&sendOpts.issueID, "issue-id", "",
		"Issue id for --type issue")
	sendCmd.Flags().StringVarP(&sendOpts.priority, "priority", "p", "normal",
		"Priority (low, normal, high)")
	sendCmd.Flags().StringVar(&sendOpts.source, "source", "",
		"Originating system recorded in the payload")
	sendCmd.Flags().StringVar(&sendOpts.appName, "app-name", "notiq",
		"Application name reported on the bus")
	sendCmd.Flags().DurationVar(&sendOpts.timeout, "timeout", 5*time.Second,
		"How long to wait for notiqd to answer")
	sendCmd.Flags().BoolVarP(&sendOpts.quiet, "quiet", "q", false,
		"Do not print the assigned bus id")
	sendCmd.Flags().BoolVar(&sendOpts.stdin, "stdin", false,
		"Read notifications as JSON (array or one object per line) from stdin")
}

func runSend(cmd *cobra.Command, args []string) error {
	notifications, err := sendInput(cmd, args)
	if err != nil {
		return err
	}

	client, err := dbus.NewClient(sendOpts.appName)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	for _, n := range notifications {
		ctx, cancel := context.WithTimeout(cmd.Context(), sendOpts.timeout)
		id, err := client.Notify(ctx, n)
		cancel()
		if err != nil {
			return err
		}
		logger.Debug("notification sent", "bus_id", id, "kind", n.Data.Kind())

		if !sendOpts.quiet {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
	}
	return nil
}

// sendInput collects the notifications to send from args or stdin.
func sendInput(cmd *cobra.Command, args []string) ([]model.Notification, error) {
	if sendOpts.stdin {
		if len(args) > 0 {
			return nil, fmt.Errorf("--stdin does not take arguments")
		}
		adapter := input.NewStdinAdapterWithReader(cmd.InOrStdin())
		notifications, err := adapter.Import(cmd.Context())
		if err != nil {
			return nil, err
		}
		if len(notifications) == 0 {
			return nil, fmt.Errorf("no notifications on stdin")
		}
		return notifications, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("a title is required")
	}
	message := ""
	if len(args) > 1 {
		message = args[1]
	}
	n, err := buildNotification(args[0], message)
	if err != nil {
		return nil, err
	}
	return []model.Notification{n}, nil
}

// buildNotification turns the send flags into a notification, checking that
// the correlation id required by the chosen type is present.
func buildNotification(title, message string) (model.Notification, error) {
	if strings.TrimSpace(title) == "" {
		return model.Notification{}, model.ErrEmptyTitle
	}

	data := model.ParseData(map[string]string{
		model.KeyType:      sendOpts.kind,
		model.KeyProjectID: sendOpts.projectID,
		model.KeyTaskID:    sendOpts.taskID,
		model.KeyIssueID:   sendOpts.issueID,
		model.KeyPriority:  sendOpts.priority,
		model.KeySource:    sendOpts.source,
	})

	missing := ""
	switch s := data.Subject.(type) {
	case model.ProjectSubject:
		if s.ProjectID == "" {
			missing = "--project-id"
		}
	case model.TaskSubject:
		if s.TaskID == "" {
			missing = "--task-id"
		}
	case model.IssueSubject:
		if s.IssueID == "" {
			missing = "--issue-id"
		}
	}
	if missing != "" {
		return model.Notification{}, fmt.Errorf("%w: --type %s requires %s", model.ErrInvalidPayload, data.Kind(), missing)
	}

	return model.Notification{Title: title, Message: message, Data: data}, nil
}
