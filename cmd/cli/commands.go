package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/worklog/internal/convert"
	"github.com/and161185/worklog/internal/report"
	grpcserver "github.com/and161185/worklog/internal/server/grpc"
	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
)

func registerCmd(a *app) *cobra.Command {
	var email, first, last, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.call(cmd, grpcserver.MethodRegister, map[string]any{
				"email": email, "firstName": first, "lastName": last, "password": password,
			}, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", out.GetFields()["userId"].GetStringValue())
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.call(cmd, grpcserver.MethodLogin, map[string]any{"email": email, "password": password}, true)
			if err != nil {
				return err
			}
			f := convert.Read(out)
			s := session{
				AccessToken: f.String("accessToken"),
				ExpiresAt:   f.Time("expiresAt", time.UTC),
				UserID:      f.String("userId"),
			}
			if err := f.Err(); err != nil {
				return err
			}
			if err := saveSession(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s %s\n", f.String("firstName"), f.String("lastName"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func projectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}

	var name, desc string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project you administer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.call(cmd, grpcserver.MethodCreateProject, map[string]any{"name": name, "description": desc}, false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.GetFields()["id"].GetStringValue())
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&desc, "description", "", "project description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List your projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.call(cmd, grpcserver.MethodListProjects, map[string]any{}, false)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tTEAM")
			for _, v := range out.GetFields()["projects"].GetListValue().GetValues() {
				p := convert.Read(v.GetStructValue())
				fmt.Fprintf(w, "%s\t%s\t%d\n", p.String("id"), p.String("name"), p.Int("teamCount"))
			}
			return w.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project you created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.call(cmd, grpcserver.MethodDeleteProject, map[string]any{"projectId": args[0]}, false)
			return err
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func memberCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Administer project members"}

	var project, role string
	setRole := &cobra.Command{
		Use:   "role <client-id>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.call(cmd, grpcserver.MethodChangeRole, map[string]any{
				"projectId": project, "clientId": args[0], "role": role,
			}, false)
			return err
		},
	}
	setRole.Flags().StringVar(&role, "role", "", "ADMIN, MANAGER or USER")

	remove := &cobra.Command{
		Use:   "remove <client-id>",
		Short: "Remove a member from a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.call(cmd, grpcserver.MethodRemoveMember, map[string]any{"projectId": project, "clientId": args[0]}, false)
			return err
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show your membership in a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.call(cmd, grpcserver.MethodAuthorizeProjectRole, map[string]any{"projectId": project, "minimum": role}, false)
			if err != nil {
				return err
			}
			f := convert.Read(out)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", f.String("id"), f.String("role"))
			return nil
		},
	}
	whoami.Flags().StringVar(&role, "min", "", "minimum role to check")

	cmd.PersistentFlags().StringVar(&project, "project", "", "project id")
	cmd.AddCommand(setRole, remove, whoami)
	return cmd
}

// clockTime combines a YYYY-MM-DD date and an HH:MM clock time in loc.
func clockTime(date, clock string, loc *time.Location) (time.Time, error) {
	if clock == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
}

func logCmd(a *app) *cobra.Command {
	var (
		project, client, date, start, end string
		title, content, id                string
		billable, absent                  bool
		ver                               int64
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Create or update the day's log",
		Long: `Create or update the day's log for a member.

Pass --id and --version to update an existing log; the server rejects the
write when someone else changed the log since you last read it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := a.location()
			if err != nil {
				return err
			}
			if date == "" {
				date = a.now().In(loc).Format("2006-01-02")
			}
			st, err := clockTime(date, start, loc)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			en, err := clockTime(date, end, loc)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			req := map[string]any{
				"projectId":  project,
				"clientId":   client,
				"title":      title,
				"content":    content,
				"isBillable": billable,
				"isAbsent":   absent,
				"version":    ver,
			}
			if id != "" {
				req["logId"] = id
			}
			if !st.IsZero() {
				req["startTime"] = st.Format(time.RFC3339)
			}
			if !en.IsZero() {
				req["endTime"] = en.Format(time.RFC3339)
			}
			out, err := a.call(cmd, grpcserver.MethodCreateOrUpdateLog, req, false)
			if err != nil {
				return err
			}
			v, err := convert.LogVersionFrom(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %d\n", v.ID, v.Version)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&project, "project", "", "project id")
	fl.StringVar(&client, "client", "", "client (member) id")
	fl.StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	fl.StringVar(&start, "start", "", "start time HH:MM")
	fl.StringVar(&end, "end", "", "end time HH:MM")
	fl.StringVar(&title, "title", "", "title")
	fl.StringVar(&content, "content", "", "description")
	fl.BoolVar(&billable, "billable", false, "billable work")
	fl.BoolVar(&absent, "absent", false, "absence")
	fl.StringVar(&id, "id", "", "existing log id (update)")
	fl.Int64Var(&ver, "version", 0, "version last read (update)")
	return cmd
}

func monthCmd(a *app) *cobra.Command {
	var project, client, month string
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Show a member's logs for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := map[string]any{"projectId": project, "clientId": client}
			if month != "" {
				req["month"] = month + "-01"
			}
			out, err := a.call(cmd, grpcserver.MethodGetClientMonth, req, false)
			if err != nil {
				return err
			}
			loc, err := a.location()
			if err != nil {
				return err
			}
			return renderMonth(cmd.OutOrStdout(), out, loc)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&client, "client", "", "client (member) id")
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default current)")
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	var (
		project, from, to, role, search, sortBy string
		desc                                     bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the project attendance grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := map[string]any{"projectId": project, "role": role, "search": search}
			if from != "" {
				req["startDate"] = from
			}
			if to != "" {
				req["endDate"] = to
			}
			out, err := a.call(cmd, grpcserver.MethodGetStatistics, req, false)
			if err != nil {
				return err
			}
			st, err := convert.StatisticsFrom(out)
			if err != nil {
				return err
			}
			loc, err := a.location()
			if err != nil {
				return err
			}
			g := report.Build(st, loc)
			g.Rows = report.Sort(g.Rows, report.ParseSortKey(sortBy), desc)
			if st.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: statistics are temporarily unavailable")
			}
			return renderGrid(cmd.OutOrStdout(), g)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&project, "project", "", "project id")
	fl.StringVar(&from, "from", "", "first day YYYY-MM-DD (default start of week)")
	fl.StringVar(&to, "to", "", "last day YYYY-MM-DD (default end of week)")
	fl.StringVar(&role, "role", "", "only members with this role")
	fl.StringVar(&search, "search", "", "match first name, last name or email")
	fl.StringVar(&sortBy, "sort", "name", "sort by name, absent, billable or empty")
	fl.BoolVar(&desc, "desc", false, "descending order")
	return cmd
}

func inviteCmd(a *app) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "invite <user-id>...",
		Short: "Invite users to a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, s := range args {
				id, err := uuid.FromString(s)
				if err != nil {
					return fmt.Errorf("bad user id %q", s)
				}
				ids = append(ids, id)
			}
			out, err := a.call(cmd, grpcserver.MethodInviteMembers, map[string]any{
				"projectId": project, "userIds": convert.UUIDList(ids),
			}, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d invitation(s)\n", convert.Read(out).Int("sent"))
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	return cmd
}

func inboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.call(cmd, grpcserver.MethodListNotifications, map[string]any{}, false)
			if err != nil {
				return err
			}
			return renderInbox(cmd.OutOrStdout(), out)
		},
	}
	rm := &cobra.Command{
		Use:   "rm <notification-id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.call(cmd, grpcserver.MethodRemoveNotification, map[string]any{"notificationId": args[0]}, false)
			return err
		},
	}
	cmd.AddCommand(rm)
	return cmd
}

func answerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <notification-id> accept|decline",
		Short: "Answer a project invitation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var accept bool
			switch strings.ToLower(args[1]) {
			case "accept", "yes":
				accept = true
			case "decline", "no":
			default:
				return errors.New("answer must be accept or decline")
			}
			_, err := a.call(cmd, grpcserver.MethodAnswerInvitation, map[string]any{
				"notificationId": args[0], "accept": accept,
			}, false)
			return err
		},
	}
}
