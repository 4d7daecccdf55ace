package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/campusbourses/internal/model"
	"github.com/nhle/campusbourses/internal/source"
	campussync "github.com/nhle/campusbourses/internal/sync"
	"github.com/nhle/campusbourses/internal/theme"
	"github.com/nhle/campusbourses/internal/ui"
)

var (
	listFilter struct {
		unread    bool
		important bool
		json      bool
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Print notifications",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	readCmd = &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, campussync.OpMarkRead, model.ID(args[0]))
		},
	}

	readAllCmd = &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMutation(cmd, campussync.OpMarkAllRead, "")
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, campussync.OpDelete, model.ID(args[0]))
		},
	}

	deleteAllCmd = &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMutation(cmd, campussync.OpDeleteAll, "")
		},
	}
)

func init() {
	listCmd.Flags().BoolVar(&listFilter.unread, "unread", false, "Only unread notifications")
	listCmd.Flags().BoolVar(&listFilter.important, "important", false, "Only important notifications")
	listCmd.Flags().BoolVar(&listFilter.json, "json", false, "Print JSON instead of a table")
}

func runList(cmd *cobra.Command, _ []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	sess, err := env.session(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	items := sess.Store.All()
	switch {
	case listFilter.unread:
		items = sess.Store.Unread()
	case listFilter.important:
		items = sess.Store.Important()
	}

	out := cmd.OutOrStdout()
	if listFilter.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	fmt.Fprintln(out, theme.HeaderStyle.Render(
		fmt.Sprintf("CampusBourses - %s %s", env.scope(), ui.Badge(sess.Store.UnreadCount(), sess.Store.ImportantCount()))))
	writeTable(out, items, time.Now())
	return nil
}

func writeTable(w io.Writer, items []model.Notification, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, theme.DimmedStyle.Render("No notifications."))
		return
	}

	t := table.New().Headers("", "ID", "KIND", "TITLE", "WHEN")
	for _, n := range items {
		mark := " "
		if !n.IsRead {
			mark = "●"
		}
		title := n.Title
		if n.IsImportant {
			title += " !"
		}
		t.Row(mark, n.ID.String(), n.Kind.Label(), title, n.TimeAgo(now))
	}
	fmt.Fprintln(w, t.Render())
}

func runMutation(cmd *cobra.Command, op campussync.Op, id model.ID) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	ctx := cmd.Context()
	sess, err := env.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := apply(ctx, sess, op, id); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Badge(sess.Store.UnreadCount(), sess.Store.ImportantCount()))
	return nil
}

// apply runs op through the session's gateway. Single notifications
// outside the fetched listing are sent straight to the backend, since the
// gateway only acts on what the store holds.
func apply(ctx context.Context, sess *campussync.Session, op campussync.Op, id model.ID) error {
	gw := sess.Gateway
	switch op {
	case campussync.OpMarkRead, campussync.OpDelete:
		if _, ok := sess.Store.Get(id); !ok {
			return applyUnlisted(ctx, sess, op, id)
		}
	}

	switch op {
	case campussync.OpMarkRead:
		return gw.MarkRead(ctx, id)
	case campussync.OpMarkAllRead:
		return gw.MarkAllRead(ctx)
	case campussync.OpDelete:
		return gw.Delete(ctx, id)
	case campussync.OpDeleteAll:
		return gw.DeleteAll(ctx)
	}
	return fmt.Errorf("unknown operation %q", op)
}

func applyUnlisted(ctx context.Context, sess *campussync.Session, op campussync.Op, id model.ID) error {
	src := sess.Source()
	var err error
	if op == campussync.OpDelete {
		err = src.Delete(ctx, id)
	} else {
		err = src.MarkRead(ctx, id)
	}
	if source.IsNotFound(err) {
		return fmt.Errorf("notification %s not found: %w", id, err)
	}
	if err != nil {
		return err
	}

	if err := sess.Scheduler.TriggerNow(ctx); err != nil && !errors.Is(err, campussync.ErrFetchInFlight) {
		return fmt.Errorf("refreshing after %s: %w", op, err)
	}
	return nil
}
