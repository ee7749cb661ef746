package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/2beens/confhub/internal/access"
	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/session"
)

func (a *App) registerCommands() {
	a.commands = map[string]*command{}
	for _, cmd := range []*command{
		{name: "login", usage: "[-u username]  log in, the password is prompted", capability: access.CapabilityNone, run: a.login},
		{name: "register", usage: "[-u username] [-e email]  create an account and log in", capability: access.CapabilityNone, run: a.register},
		{name: "logout", usage: "forget the stored credential", capability: access.CapabilityNone, run: a.logout},
		{name: "status", usage: "show the stored credential and session state", capability: access.CapabilityNone, run: a.status},
		{name: "rooms", usage: "list rooms", capability: access.CapabilityNone, run: a.rooms},
		{name: "whoami", usage: "[-refresh]  show the logged in user", capability: access.CapabilityAuthenticated, run: a.whoami},
		{name: "reservations", usage: "list your reservations", capability: access.CapabilityAuthenticated, run: a.reservations},
		{name: "reserve", usage: "-room id -date YYYY-MM-DD -start HH:MM -end HH:MM", capability: access.CapabilityAuthenticated, run: a.reserve},
		{name: "edit", usage: "<reservation id> [-room id] [-date YYYY-MM-DD] [-start HH:MM] [-end HH:MM]  change a reservation", capability: access.CapabilityAuthenticated, run: a.edit},
		{name: "cancel", usage: "<reservation id>", capability: access.CapabilityAuthenticated, run: a.cancel},
		{name: "admin", usage: "users | rooms | reservations", capability: access.CapabilityAdmin, run: a.admin},
	} {
		a.commands[cmd.name] = cmd
	}
}

func (a *App) login(ctx context.Context, _ *hubapi.User, args []string) error {
	fs := a.newFlagSet("login")
	username := fs.String("u", "", "username")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}

	if *username == "" {
		var err error
		if *username, err = a.prompt("Username: "); err != nil {
			return err
		}
	}
	password, err := a.password("Password: ")
	if err != nil {
		return err
	}
	if *username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrUsage)
	}

	return a.loginWith(ctx, *username, password)
}

func (a *App) loginWith(ctx context.Context, username, password string) error {
	cred, err := a.api.ObtainToken(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %s", hubapi.UserMessage(err, err.Error()))
	}
	if err := a.session.Login(ctx, cred); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, a.checkTimeout)
	defer cancel()
	state, err := a.session.Await(awaitCtx)
	if err != nil {
		return fmt.Errorf("login: waiting for the account: %w", err)
	}
	if !state.Authenticated() {
		return fmt.Errorf("login: account could not be verified (%s)", state.Reason)
	}

	a.printf("logged in as %s%s\n", state.Identity.Username, staffSuffix(state.Identity))
	return nil
}

func (a *App) register(ctx context.Context, _ *hubapi.User, args []string) error {
	fs := a.newFlagSet("register")
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if *username == "" {
		if *username, err = a.prompt("Username: "); err != nil {
			return err
		}
	}
	password, err := a.password("Password: ")
	if err != nil {
		return err
	}
	confirm, err := a.password("Confirm password: ")
	if err != nil {
		return err
	}

	switch {
	case *username == "" || password == "":
		return fmt.Errorf("%w: username and password are required", ErrUsage)
	case password != confirm:
		return fmt.Errorf("%w: passwords do not match", ErrUsage)
	}

	if _, err := a.api.Register(ctx, hubapi.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: password,
	}); err != nil {
		return fmt.Errorf("registration failed: %s", hubapi.UserMessage(err, err.Error()))
	}
	a.printf("registered %s\n", *username)

	return a.loginWith(ctx, *username, password)
}

func (a *App) logout(ctx context.Context, _ *hubapi.User, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.printf("logged out\n")
	return nil
}

func (a *App) status(ctx context.Context, _ *hubapi.User, _ []string) error {
	cred, err := a.credentials.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	a.printf("credential: %s\n", credentials.Describe(cred))

	awaitCtx, cancel := context.WithTimeout(ctx, a.checkTimeout)
	defer cancel()
	state, err := a.session.Await(awaitCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("session state: %w", err)
	}

	switch state.Status {
	case session.StatusAuthenticated:
		a.printf("session: authenticated as %s%s\n", state.Identity.Username, staffSuffix(state.Identity))
	case session.StatusResolving:
		a.printf("session: resolving\n")
	default:
		a.printf("session: unauthenticated (%s)\n", state.Reason)
	}
	return nil
}

func (a *App) whoami(ctx context.Context, identity *hubapi.User, args []string) error {
	fs := a.newFlagSet("whoami")
	refresh := fs.Bool("refresh", false, "look the identity up again before printing it")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}

	if *refresh {
		if err := a.session.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh session: %w", err)
		}
		awaitCtx, cancel := context.WithTimeout(ctx, a.checkTimeout)
		defer cancel()
		state, err := a.session.Await(awaitCtx)
		if err != nil {
			return fmt.Errorf("whoami: %w", ErrChecking)
		}
		verdict := access.Evaluate(state, access.CapabilityAuthenticated)
		if !verdict.Allowed() {
			return &DeniedError{Command: "whoami", Verdict: verdict}
		}
		identity = verdict.Identity
	}

	a.printf("%s (id %d)%s\n", identity.Username, identity.ID, staffSuffix(identity))
	if identity.Email != "" {
		a.printf("email: %s\n", identity.Email)
	}
	return nil
}

func (a *App) rooms(ctx context.Context, _ *hubapi.User, _ []string) error {
	rooms, err := a.api.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %s", hubapi.UserMessage(err, err.Error()))
	}
	a.printRooms(rooms)
	return nil
}

func (a *App) reservations(ctx context.Context, _ *hubapi.User, _ []string) error {
	reservations, err := a.api.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("list reservations: %s", hubapi.UserMessage(err, err.Error()))
	}
	a.printReservations(reservations)
	return nil
}

func (a *App) reserve(ctx context.Context, _ *hubapi.User, args []string) error {
	fs := a.newFlagSet("reserve")
	roomID := fs.Int("room", 0, "room id")
	date := fs.String("date", "", "date, YYYY-MM-DD")
	start := fs.String("start", "", "start time, HH:MM")
	end := fs.String("end", "", "end time, HH:MM")
	if err := a.parseFlags(fs, args); err != nil {
		return err
	}

	req := hubapi.ReservationRequest{
		RoomID:    *roomID,
		Date:      *date,
		StartTime: *start,
		EndTime:   *end,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	reservation, err := a.api.CreateReservation(ctx, req)
	if err != nil {
		return fmt.Errorf("reserve: %s", hubapi.UserMessage(err, err.Error()))
	}
	a.printf("reservation %d created: %s %s-%s\n", reservation.ID, reservation.Date, reservation.StartTime, reservation.EndTime)
	return nil
}

// edit changes a reservation. Fields without a flag keep their current value.
func (a *App) edit(ctx context.Context, _ *hubapi.User, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: edit <reservation id> [flags]", ErrUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: reservation id must be a number", ErrUsage)
	}

	fs := a.newFlagSet("edit")
	roomID := fs.Int("room", 0, "room id")
	date := fs.String("date", "", "date, YYYY-MM-DD")
	start := fs.String("start", "", "start time, HH:MM")
	end := fs.String("end", "", "end time, HH:MM")
	if err := a.parseFlags(fs, args[1:]); err != nil {
		return err
	}

	reservations, err := a.api.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("list reservations: %s", hubapi.UserMessage(err, err.Error()))
	}
	var current *hubapi.Reservation
	for i := range reservations {
		if reservations[i].ID == id {
			current = &reservations[i]
			break
		}
	}
	if current == nil {
		return fmt.Errorf("reservation %d not found", id)
	}

	req := hubapi.ReservationRequest{
		Date:      current.Date,
		StartTime: current.StartTime,
		EndTime:   current.EndTime,
	}
	if current.Room != nil {
		req.RoomID = current.Room.ID
	}
	if *roomID != 0 {
		req.RoomID = *roomID
	}
	if *date != "" {
		req.Date = *date
	}
	if *start != "" {
		req.StartTime = *start
	}
	if *end != "" {
		req.EndTime = *end
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	updated, err := a.api.UpdateReservation(ctx, id, req)
	if err != nil {
		return fmt.Errorf("edit reservation %d: %s", id, hubapi.UserMessage(err, err.Error()))
	}
	a.printf("reservation %d updated: %s %s-%s\n", updated.ID, updated.Date, updated.StartTime, updated.EndTime)
	return nil
}

func (a *App) cancel(ctx context.Context, _ *hubapi.User, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: cancel <reservation id>", ErrUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: reservation id must be a number", ErrUsage)
	}

	if err := a.api.CancelReservation(ctx, id); err != nil {
		return fmt.Errorf("cancel reservation %d: %s", id, hubapi.UserMessage(err, err.Error()))
	}
	a.printf("reservation %d cancelled\n", id)
	return nil
}

func (a *App) admin(ctx context.Context, _ *hubapi.User, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: admin users | rooms | reservations", ErrUsage)
	}

	switch args[0] {
	case "users":
		users, err := a.api.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %s", hubapi.UserMessage(err, err.Error()))
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tSTAFF")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.IsStaff)
		}
		return w.Flush()
	case "rooms":
		return a.rooms(ctx, nil, nil)
	case "reservations":
		return a.reservations(ctx, nil, nil)
	default:
		return fmt.Errorf("%w: unknown admin target %q", ErrUsage, args[0])
	}
}

func (a *App) printRooms(rooms []hubapi.Room) {
	if len(rooms) == 0 {
		a.printf("no rooms\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATION\tCAPACITY")
	for _, r := range rooms {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", r.ID, r.Name, r.Location, r.Capacity)
	}
	_ = w.Flush()
}

func (a *App) printReservations(reservations []hubapi.Reservation) {
	if len(reservations) == 0 {
		a.printf("no reservations\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROOM\tDATE\tTIME\tSTATUS")
	for _, r := range reservations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s-%s\t%s\n", r.ID, r.RoomName(), r.Date, r.StartTime, r.EndTime, r.Status)
	}
	_ = w.Flush()
}

func staffSuffix(user *hubapi.User) string {
	if user != nil && user.IsStaff {
		return " [staff]"
	}
	return ""
}
