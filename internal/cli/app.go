package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/2beens/confhub/internal/access"
	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/session"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var (
	ErrUsage    = errors.New("usage error")
	ErrChecking = errors.New("session still resolving, try again")
)

// DeniedError is returned when the guard refuses a command.
type DeniedError struct {
	Command string
	Verdict access.Verdict
}

func (e *DeniedError) Error() string {
	if e.Verdict.LoginRequired() {
		return fmt.Sprintf("%s: login required (%s), run: confhubctl login", e.Command, e.Verdict.Reason)
	}
	return fmt.Sprintf("%s: your account lacks the privilege for this command", e.Command)
}

type hubAPI interface {
	ObtainToken(ctx context.Context, username, password string) (credentials.Credential, error)
	Register(ctx context.Context, req hubapi.RegisterRequest) (*hubapi.User, error)
	ListRooms(ctx context.Context) ([]hubapi.Room, error)
	ListReservations(ctx context.Context) ([]hubapi.Reservation, error)
	CreateReservation(ctx context.Context, req hubapi.ReservationRequest) (*hubapi.Reservation, error)
	UpdateReservation(ctx context.Context, id int, req hubapi.ReservationRequest) (*hubapi.Reservation, error)
	CancelReservation(ctx context.Context, id int) error
	ListUsers(ctx context.Context) ([]hubapi.User, error)
}

type sessionController interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, cred credentials.Credential) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	State() session.State
	Await(ctx context.Context) (session.State, error)
}

type verdictChecker interface {
	Check(ctx context.Context, capability access.Capability) access.Verdict
}

type credentialSource interface {
	Load(ctx context.Context) (credentials.Credential, error)
}

type Params struct {
	API         hubAPI
	Session     sessionController
	Guard       verdictChecker
	Credentials credentialSource
	// CheckTimeout bounds the wait for the session to settle.
	CheckTimeout time.Duration

	Out io.Writer
	In  io.Reader
	// PasswordFD is the terminal passwords are read from without echo,
	// -1 reads them as plain lines from In.
	PasswordFD int
}

// App runs confhubctl commands. Every command passes the access guard first.
type App struct {
	api          hubAPI
	session      sessionController
	guard        verdictChecker
	credentials  credentialSource
	checkTimeout time.Duration

	out        io.Writer
	in         *bufio.Reader
	passwordFD int

	commands map[string]*command
}

type command struct {
	name       string
	usage      string
	capability access.Capability
	run        func(ctx context.Context, identity *hubapi.User, args []string) error
}

func NewApp(params Params) (*App, error) {
	if params.API == nil || params.Session == nil || params.Guard == nil || params.Credentials == nil {
		return nil, errors.New("cli: api, session, guard and credentials are required")
	}

	checkTimeout := params.CheckTimeout
	if checkTimeout <= 0 {
		checkTimeout = 10 * time.Second
	}

	a := &App{
		api:          params.API,
		session:      params.Session,
		guard:        params.Guard,
		credentials:  params.Credentials,
		checkTimeout: checkTimeout,
		out:          params.Out,
		in:           bufio.NewReader(params.In),
		passwordFD:   params.PasswordFD,
	}
	a.registerCommands()
	return a, nil
}

// Run initializes the session and runs the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return ErrUsage
	}

	cmd, ok := a.commands[args[0]]
	if !ok {
		a.printUsage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	if err := a.session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, a.checkTimeout)
	verdict := a.guard.Check(checkCtx, cmd.capability)
	cancel()

	log.WithFields(log.Fields{
		"command":  cmd.name,
		"decision": verdict.Decision,
		"reason":   verdict.Reason,
	}).Debug("cli access check")

	switch verdict.Decision {
	case access.DecisionAllowed:
		return cmd.run(ctx, verdict.Identity, args[1:])
	case access.DecisionChecking:
		return fmt.Errorf("%s: %w", cmd.name, ErrChecking)
	default:
		return &DeniedError{Command: cmd.name, Verdict: verdict}
	}
}

func (a *App) printUsage() {
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	a.printf("usage: confhubctl <command> [arguments]\n\ncommands:\n")
	for _, name := range names {
		a.printf("  %-14s %s\n", name, a.commands[name].usage)
	}
}

func (a *App) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(a.out, format, args...); err != nil {
		log.Errorf("cli write output: %s", err)
	}
}

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}

// prompt reads one line, answered by the user after the prompt text.
func (a *App) prompt(text string) (string, error) {
	a.printf("%s", text)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *App) password(text string) (string, error) {
	if a.passwordFD < 0 || !term.IsTerminal(a.passwordFD) {
		line, err := a.prompt(text)
		return line, err
	}

	a.printf("%s", text)
	pw, err := term.ReadPassword(a.passwordFD)
	a.printf("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
