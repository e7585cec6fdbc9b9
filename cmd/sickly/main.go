package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/eugenenazirov/sickly/internal/application"
	"github.com/eugenenazirov/sickly/internal/compose"
	"github.com/eugenenazirov/sickly/internal/config"
	"github.com/eugenenazirov/sickly/internal/logging"
	"github.com/eugenenazirov/sickly/internal/notify"
	"github.com/eugenenazirov/sickly/internal/symptom"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code. Extra
// options are passed to the application, primarily for tests.
func run(args []string, stdout, stderr io.Writer, opts ...application.Option) int {
	configPath, err := config.DefaultPath()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintf(stderr, "The configuration file at %s is either missing or incomplete.\n", configPath)
		fmt.Fprintln(stderr, "Please create one properly first.")
		fmt.Fprintln(stderr, "See config.sample.ini for an example.")
		return exitFailure
	}

	kingpinApp := kingpin.New("sickly", "Email a Sick Notice about the SEVERITY of your symptoms TO one or more email addresses")
	kingpinApp.UsageWriter(stdout)
	kingpinApp.ErrorWriter(stderr)
	terminated := -1
	kingpinApp.Terminate(func(code int) {
		if terminated < 0 {
			terminated = code
		}
	})

	severity := kingpinApp.Flag("severity", "Severity of the symptom: 1=Mild | 2=Medium | 3=Severe, or a range such as 1-2").
		Short('s').PlaceHolder("SEVERITY").Default(strconv.Itoa(int(symptom.Medium))).String()
	duration := kingpinApp.Flag("duration", "Duration of symptom in hours. -1 means < 1hr (pass as -d-1 or --duration=-1)").
		Short('d').PlaceHolder("HOURS").Default(strconv.Itoa(symptom.DefaultDuration)).Int()
	templatePath := kingpinApp.Flag("template", "A Markdown template to use for your email").
		Short('t').PlaceHolder("TEMPLATE").Default(cfg.Template).String()
	note := kingpinApp.Flag("msg", "Extra notes").Short('m').Default("NONE").String()
	verbose := kingpinApp.Flag("verbose", "Log progress to stderr").Short('v').Bool()
	dryRun := kingpinApp.Flag("dry-run", "Print the composed message instead of sending it").Short('n').Bool()
	to := kingpinApp.Arg("to", "Email addresses to notify").Required().Strings()

	_, parseErr := kingpinApp.Parse(args)
	if terminated >= 0 {
		return terminated
	}
	if parseErr != nil {
		kingpinApp.Errorf("%s, try --help", parseErr)
		return exitFailure
	}

	logger, err := logging.New(logging.Options{Verbose: *verbose})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appOpts := append([]application.Option{application.WithOutput(stdout)}, opts...)
	app, err := application.New(cfg, logger, appOpts...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	result, err := app.Run(ctx, application.Request{
		Severity:   *severity,
		Duration:   *duration,
		Template:   *templatePath,
		Note:       *note,
		Recipients: *to,
		DryRun:     *dryRun,
	})
	if err != nil {
		return report(stderr, err)
	}

	if result.Sent {
		fmt.Fprintf(stdout, "Sick Notification Successfully Sent to %s\n", strings.Join(result.Email.To, ", "))
	}
	return exitOK
}

// report prints the user-facing explanation of err and returns the exit code.
func report(w io.Writer, err error) int {
	var templateErr *compose.TemplateError
	switch {
	case errors.Is(err, symptom.ErrSeverityFormat):
		fmt.Fprintln(w, "Severity ranges must be of the format 'min-max' i.e 1-2")
		return exitUsage
	case errors.Is(err, symptom.ErrSeverityOutOfRange):
		fmt.Fprintln(w, "Severity out of range")
		return exitUsage
	case errors.Is(err, symptom.ErrInvalidDuration):
		fmt.Fprintln(w, "Duration must be -1 (less than an hour) or a number of hours")
		return exitUsage
	case errors.As(err, &templateErr) && errors.Is(err, compose.ErrTemplateNotFound):
		fmt.Fprintf(w, "No template at %s. Please create one.\n", templateErr.Path)
		return exitFailure
	case errors.Is(err, notify.ErrSendFailed):
		fmt.Fprintln(w, err)
		fmt.Fprintln(w, "Unable to send email")
		return exitFailure
	default:
		fmt.Fprintln(w, err)
		return exitFailure
	}
}
