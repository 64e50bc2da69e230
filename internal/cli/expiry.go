package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/service/passwordexpiry"
)

func parseUserID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: %w", arg, err)
	}
	return id, nil
}

func printExpiry(w io.Writer, res model.UserPasswordExpiry) {
	if !res.Tracked() {
		fmt.Fprintf(w, "user %s: not tracked\n", res.UserID)
		return
	}
	rec := res.Record
	fmt.Fprintf(w, "user %s: state=%s expires_at=%s expired=%t\n",
		res.UserID, rec.State, rec.ExpiryTimestamp().Format(time.RFC3339), rec.IsExpired())
}

func newExpiryStatusCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "expiry-status <user-id>",
		Short: "Show the password expiry of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				res, err := b.PasswordExpiryService().Lookup(ctx, userID)
				if err != nil {
					return err
				}
				printExpiry(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

// newTransitionCmd builds a command that tracks the user if needed and then
// applies one persisted transition.
func newTransitionCmd(a *cliApp, use, short string, apply func(passwordexpiry.PasswordExpiryServicer, context.Context, *model.PasswordExpiry) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				svc := b.PasswordExpiryService()
				rec, err := svc.EnsureTracked(ctx, userID)
				if err != nil {
					return err
				}
				if err := apply(svc, ctx, rec); err != nil {
					return err
				}
				printExpiry(cmd.OutOrStdout(), model.UserPasswordExpiry{UserID: userID, Record: rec})
				return nil
			})
		},
	}
}

func newNeverExpireCmd(a *cliApp) *cobra.Command {
	return newTransitionCmd(a, "never-expire", "Stop forcing password changes for a user",
		passwordexpiry.PasswordExpiryServicer.NeverExpire)
}

func newRequireChangeCmd(a *cliApp) *cobra.Command {
	return newTransitionCmd(a, "require-change", "Force a user to change their password at next login",
		passwordexpiry.PasswordExpiryServicer.RequireChange)
}

func newPasswordChangedCmd(a *cliApp) *cobra.Command {
	return newTransitionCmd(a, "password-changed", "Record a password change and schedule the next expiry",
		passwordexpiry.PasswordExpiryServicer.RecordPasswordChange)
}
