package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-lending/internal/config"
	"library-lending/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app holds what every command needs once the root command has run.
type app struct {
	configPath string
	jsonOutput bool

	cfg    *config.Config
	logger *slog.Logger
	mgr    *library.LibraryManager

	in  *bufio.Reader
	out io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if err := a.execute(ctx, os.Args[1:]); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Manage books, members and loans of a small library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.open()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		a.bookCommand(),
		a.memberCommand(),
		a.lendCommand(),
		a.returnCommand(),
		a.loansCommand(),
		a.historyCommand(),
		a.statsCommand(),
		a.reconcileCommand(),
		a.loginCommand(),
	)
	return root
}

// execute runs one command line and closes the database afterwards, also
// when the command failed.
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.out)
	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	mgr, err := library.NewLibraryManager(cfg.Database.Path,
		library.WithLogger(logger),
		library.WithBcryptCost(cfg.Security.BcryptCost),
		library.WithDatabaseOptions(library.WithBusyTimeout(cfg.Database.GetBusyTimeout())),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.mgr = mgr
	return nil
}

func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	err := a.mgr.Close()
	a.mgr = nil
	return err
}

// newLogger builds the slog logger writing to stderr.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// render prints v as JSON with --json, otherwise it calls text.
func (a *app) render(v any, text func()) error {
	if a.jsonOutput {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

type resultView struct {
	Kind   string              `json:"kind"`
	ID     int64               `json:"id,omitempty"`
	Fields library.FieldErrors `json:"fields,omitempty"`
	Reason string              `json:"reason,omitempty"`
}

// result prints the outcome of a write. A failed result is also returned as
// an error so the process exits non-zero.
func (a *app) result(res library.Result, format string, args ...any) error {
	if a.jsonOutput {
		view := resultView{Kind: res.Kind.String(), ID: res.ID, Fields: res.Fields, Reason: res.Reason}
		if err := a.render(view, nil); err != nil {
			return err
		}
		return res.Err()
	}

	if !res.OK() {
		return res.Err()
	}
	fmt.Fprintf(a.out, format+"\n", args...)
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// ---------------------------------------------------------------------------
// Input
// ---------------------------------------------------------------------------

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, arg)
	}
	return id, nil
}

// readPassword reads a password with masking. Piped input is read as one line.
func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(syscall.Stdin)) {
		line, err := a.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytePassword), nil
}

// readNewPassword prompts twice and requires both entries to match.
func (a *app) readNewPassword(prompt string) (string, error) {
	password, err := a.readPassword(prompt)
	if err != nil {
		return "", err
	}
	confirm, err := a.readPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// authenticate asks for the password of username and returns the member id.
func (a *app) authenticate(cmd *cobra.Command, username string) (int64, error) {
	password, err := a.readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return 0, err
	}
	id, res := a.mgr.Members().Authenticate(cmd.Context(), username, password)
	if !res.OK() {
		return 0, res.Err()
	}
	return id, nil
}
