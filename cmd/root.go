// Package cmd is the billder command line: the dashboard server plus
// terminal versions of the owner and customer screens.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/config"
	"github.com/mohsenfayyazi/billder/logger"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/processor"
	"github.com/mohsenfayyazi/billder/ratelimit"
	"github.com/mohsenfayyazi/billder/session"
)

var version = "1.0.0"

// App carries what every command needs. Execute fills it from the process
// environment; tests build their own.
type App struct {
	Config    *config.Config
	Store     session.Store
	Hub       *session.Hub
	HTTP      *http.Client
	Tokenizer processor.Tokenizer
	In        io.Reader
	Out       io.Writer
	Now       func() time.Time

	profile string
	limits  *ratelimit.Pair
	input   *bufio.Reader
}

// NewRootCmd builds the command tree bound to a.
func NewRootCmd(a *App) *cobra.Command {
	if a.In == nil {
		a.In = os.Stdin
	}
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.HTTP == nil {
		a.HTTP = &http.Client{Timeout: a.Config.HTTPTimeout}
	}
	if a.Hub == nil {
		a.Hub = session.NewHub()
	}
	a.limits = ratelimit.NewPair(a.Config.RateLimits(), ratelimit.WithClock(a.Now))

	root := &cobra.Command{
		Use:   "billder",
		Short: "Billder - invoices and payments for businesses and their customers",
		Long: `Billder runs the billing dashboard and lets business owners and customers
work with invoices, payments, and refunds from the terminal.

Sessions are stored per profile, so an owner and a customer can be signed in
side by side with --profile.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.profile, "profile", "default", "session profile to use")

	root.AddCommand(
		newServeCmd(a),
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newInvoicesCmd(a),
		newPaymentsCmd(a),
		newPayCmd(a),
		newRefundCmd(a),
		newRefundsCmd(a),
		newPDFCmd(a),
		newPublicCmd(a),
		newTotalsCmd(a),
	)
	return root
}

// Execute runs the command line and reports a failure on stderr.
func Execute(a *App) error {
	log := logger.WithComponent("cmd")

	root := NewRootCmd(a)
	cmd, err := root.ExecuteC()
	if err != nil {
		log.Debug().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorText(err))
		if needsLogin(cmd, err) {
			fmt.Fprintln(os.Stderr, "Run `billder login` to sign in again.")
		}
		return err
	}
	return nil
}

// errorText is the user-facing message for err.
func errorText(err error) string {
	return apierror.Normalize(err).Message
}

// needsLogin reports whether err means the stored session is gone. A
// rejected login or registration is not.
func needsLogin(cmd *cobra.Command, err error) bool {
	if cmd != nil && (cmd.Name() == "login" || cmd.Name() == "register") {
		return false
	}
	return apierror.Is(err, apierror.KindAuth)
}

func (a *App) namespace() string {
	return "cli:" + a.profile
}

func (a *App) session() *session.Manager {
	return session.NewManager(a.Store, a.Hub, a.namespace(), session.WithClock(a.Now))
}

func (a *App) client() *apiclient.Client {
	return apiclient.New(a.Config.APIURL, a.session(),
		apiclient.WithHTTPClient(a.HTTP),
		apiclient.WithLimiter(a.limits.API),
		apiclient.WithSessionTTL(a.Config.SessionTTL),
		apiclient.WithLogger(logger.WithComponent("api")),
	)
}

// requireRole loads the signed-in user and checks their role.
func (a *App) requireRole(ctx context.Context, role models.Role) (models.User, error) {
	sess, err := a.session().Load(ctx)
	if err != nil {
		return models.User{}, apierror.Auth(apierror.MsgAuthRequired)
	}
	if sess.User.Role != role {
		switch role {
		case models.RoleBusinessOwner:
			return models.User{}, errors.New("this command is only available to business owners")
		default:
			return models.User{}, errors.New("this command is only available to customers")
		}
	}
	return sess.User, nil
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

// readLine reads one trimmed line of input, or "" at EOF.
func (a *App) readLine() string {
	if a.input == nil {
		a.input = bufio.NewReader(a.In)
	}
	line, _ := a.input.ReadString('\n')
	return strings.TrimSpace(line)
}

func (a *App) prompt(label string) string {
	a.printf("%s: ", label)
	return a.readLine()
}

// confirm asks a yes/no question defaulting to no.
func (a *App) confirm(question string) bool {
	a.printf("%s [y/N]: ", question)
	switch strings.ToLower(a.readLine()) {
	case "y", "yes":
		return true
	}
	return false
}
