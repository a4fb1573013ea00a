package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/session"
	"github.com/mohsenfayyazi/billder/validation"
	"github.com/mohsenfayyazi/billder/views"
)

func newLoginCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session for this profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" {
				email = a.prompt("Email")
			}
			if password == "" {
				password = a.prompt("Password")
			}
			email = strings.TrimSpace(email)
			if err := validation.Email(email); err != nil {
				return err
			}
			if err := validation.Password(password); err != nil {
				return err
			}

			user, err := a.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if session.RouteFor(user.Role) == "" {
				return errors.New("unknown account role, please contact support")
			}
			a.printf("Logged in as %s (%s)\n", displayName(user), roleLabel(user.Role))
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (prompted when empty)")
	return cmd
}

func newRegisterCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			first, _ := flags.GetString("first-name")
			last, _ := flags.GetString("last-name")
			email, _ := flags.GetString("email")
			password, _ := flags.GetString("password")
			confirm, _ := flags.GetString("confirm-password")
			roleName, _ := flags.GetString("role")

			role := models.Role(roleName)
			if role != models.RoleBusinessOwner && role != models.RoleCustomer {
				return apierror.Validation("Please choose an account type: business_owner or customer")
			}
			email = strings.TrimSpace(email)
			for _, check := range []error{
				validation.Name("first_name", first),
				validation.Name("last_name", last),
				validation.Email(email),
				validation.PasswordStrength(password),
			} {
				if check != nil {
					return check
				}
			}
			if password != confirm {
				return apierror.Validation("Passwords do not match")
			}

			user, err := a.client().Register(cmd.Context(), apiclient.Registration{
				Email:           email,
				FirstName:       validation.Sanitize(first),
				LastName:        validation.Sanitize(last),
				Role:            role,
				Password:        password,
				PasswordConfirm: confirm,
			})
			if err != nil {
				return err
			}
			a.printf("Account created. Logged in as %s (%s)\n", displayName(user), roleLabel(user.Role))
			return nil
		},
	}
	cmd.Flags().String("first-name", "", "first name")
	cmd.Flags().String("last-name", "", "last name")
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "password")
	cmd.Flags().String("confirm-password", "", "password again")
	cmd.Flags().String("role", string(models.RoleCustomer), "business_owner or customer")
	return cmd
}

// resetter is a store that can drop every profile at once.
type resetter interface {
	Reset(ctx context.Context) error
}

func newLogoutCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Logout(cmd.Context()); err != nil {
				return err
			}
			if all, _ := cmd.Flags().GetBool("all"); all {
				r, ok := a.Store.(resetter)
				if !ok {
					return errors.New("this session store cannot forget all profiles")
				}
				if err := r.Reset(cmd.Context()); err != nil {
					return err
				}
				a.printf("Logged out of every profile.\n")
				return nil
			}
			a.printf("Logged out.\n")
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "also forget the sessions of every other profile")
	return cmd
}

func newWhoamiCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user for this profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
				// a rejected token clears the session, reported below
				if _, err := a.client().Profile(cmd.Context()); err != nil && !apierror.Is(err, apierror.KindAuth) {
					return err
				}
			}
			sess, err := a.session().Load(cmd.Context())
			if err != nil {
				if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrCorrupt) {
					a.printf("Not logged in.\n")
					return nil
				}
				return err
			}
			tw := a.table()
			row(tw, "Name", displayName(sess.User))
			row(tw, "Email", sess.User.Email)
			row(tw, "Role", roleLabel(sess.User.Role))
			row(tw, "Session expires", views.FormatDateTime(sess.ExpiresAt))
			row(tw, "Profile", a.profile)
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("refresh", false, "check the session with the billing API first")
	return cmd
}

func displayName(u models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return views.GreetingFallback(u.Role)
	}
	return name
}

func roleLabel(r models.Role) string {
	if r == models.RoleBusinessOwner {
		return views.OwnerFallback
	}
	return views.CustomerFallback
}
