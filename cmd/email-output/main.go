package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/CZERTAINLY/email-output/internal/compose"
	"github.com/CZERTAINLY/email-output/internal/host"
	"github.com/CZERTAINLY/email-output/internal/log"
	"github.com/CZERTAINLY/email-output/internal/mail"
	"github.com/CZERTAINLY/email-output/internal/metrics"
	"github.com/CZERTAINLY/email-output/internal/model"
	"github.com/CZERTAINLY/email-output/internal/policy"
	"github.com/CZERTAINLY/email-output/internal/runner"
	"github.com/CZERTAINLY/email-output/internal/service"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

const (
	progName   = "email-output"
	configEnv  = "EMAIL_OUTPUT_CONFIG"
	configFile = "email-output.yaml"

	exitUsage = 2
)

// version is set by -ldflags "-X main.version=..."
var version = ""

const epilog = `To prevent ARGS to be interpreted as OPTIONS to email-output, add two
dashes (--) before the COMMAND.

--not-on-success prevents the email if the command returns zero (succeeds),
no matter if it produced output or not. Use it to get emails only on failure.

--not-on-silence prevents the email if the command produces no output, no
matter its return code. Use it to get emails only when there is output.

With both --not-on-silence and --not-on-success an email is sent only if the
command fails AND produces output. This is likely not what you want.

To get an email if the command fails OR produces output use
--not-on-silent-success.`

type options struct {
	noCombined         bool
	notOnSilence       bool
	notOnSuccess       bool
	notOnSilentSuccess bool
	recipients         []string
	subject            string
	version            bool

	configPath string
	verbose    bool
	dumpConfig bool

	// filled by initConfig
	config     model.Config
	configUsed string
}

// usageError makes execute print the usage and exit with exitUsage.
type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func (e usageError) Unwrap() error {
	return e.err
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	exitCode := 0
	rootCmd := newRootCmd(opts, func(cmd *cobra.Command, args []string) error {
		code, err := run(cmd, opts, args)
		exitCode = code
		return err
	})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	var uerr usageError
	switch {
	case errors.As(err, &uerr):
		_, _ = fmt.Fprint(stderr, rootCmd.UsageString())
		_, _ = fmt.Fprintf(stderr, "%s: error: %v\n", progName, uerr.err)
		return exitUsage
	case err != nil:
		slog.ErrorContext(ctx, progName+" failed", "error", err)
		if exitCode == 0 {
			exitCode = service.ExitCodeFailure
		}
	}
	return exitCode
}

func newRootCmd(opts *options, runE func(*cobra.Command, []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:           progName + " [OPTIONS] [--] COMMAND [ARGS ...]",
		Short:         "Execute a command and send its output via email",
		Long:          "Execute a command and send its output via email.\n\n" + epilog,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE,
	}

	flags := cmd.Flags()
	// everything after COMMAND belongs to COMMAND
	flags.SetInterspersed(false)

	flags.BoolVarP(&opts.version, "version", "V", false, "show program's version number and exit")
	flags.BoolVarP(&opts.noCombined, "no-combined", "C", false, "do not combine stdout and stderr")
	flags.BoolVar(&opts.notOnSilence, "not-on-silence", false, "only send email if command produce output")
	flags.BoolVar(&opts.notOnSuccess, "not-on-success", false, "only send email if command exit with non-zero return code (i.e. command fails)")
	flags.BoolVar(&opts.notOnSilentSuccess, "not-on-silent-success", false, "only send email if command exit with non-zero return code or produce any output")
	flags.StringArrayVarP(&opts.recipients, "recipient", "r", nil, "the email `ADDR`, that the command output will be sent to (can be used multiple times)")
	flags.StringVarP(&opts.subject, "subject", "s", "", "the email subject `TEXT`")

	flags.StringVar(&opts.configPath, "config", "", "config file to load, default is "+configFile+" in "+userConfigDir()+" or /etc")
	flags.BoolVar(&opts.verbose, "verbose", false, "verbose logging")
	flags.BoolVar(&opts.dumpConfig, "dump-config", false, "print the effective configuration as YAML and exit")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if opts.version {
			return nil
		}
		return initConfig(cmd, opts)
	}
	return cmd
}

func run(cmd *cobra.Command, opts *options, args []string) (int, error) {
	out := cmd.OutOrStdout()
	if opts.version {
		_, _ = fmt.Fprintf(out, "%s %s\n", progName, versionString())
		return 0, nil
	}
	if opts.dumpConfig {
		enc := yaml.NewEncoder(out)
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(opts.config); err != nil {
			return service.ExitCodeFailure, fmt.Errorf("encoding configuration: %w", err)
		}
		return 0, nil
	}
	if len(args) == 0 {
		return exitUsage, usageError{err: errors.New("the following arguments are required: COMMAND")}
	}

	ctx := log.ContextAttrs(cmd.Context(), slog.Group(progName,
		slog.String("cmd", args[0]),
		slog.String("run", uuid.NewString()),
		slog.Int("pid", os.Getpid()),
	))
	job, err := newJob(cmd, opts, args)
	if err != nil {
		return exitUsage, usageError{err: err}
	}

	wrapper, err := newWrapper(ctx, opts.config, job, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return service.ExitCodeFailure, err
	}
	return wrapper.Do(ctx, job)
}

// newJob merges the command line with the configuration file, the command
// line wins.
func newJob(cmd *cobra.Command, opts *options, args []string) (service.Job, error) {
	cfg := opts.config

	combined := true
	if cfg.Combined != nil {
		combined = *cfg.Combined
	}
	if opts.noCombined {
		combined = false
	}
	req, err := model.NewExecutionRequest(args, combined)
	if err != nil {
		return service.Job{}, err
	}

	flags := policy.Flags{
		NotOnSilence:       opts.notOnSilence,
		NotOnSuccess:       opts.notOnSuccess,
		NotOnSilentSuccess: opts.notOnSilentSuccess,
	}.Or(policy.Flags{
		NotOnSilence:       cfg.Policy.NotOnSilence,
		NotOnSuccess:       cfg.Policy.NotOnSuccess,
		NotOnSilentSuccess: cfg.Policy.NotOnSilentSuccess,
	})

	subject := opts.subject
	if !cmd.Flags().Changed("subject") && cfg.Subject != nil {
		subject = *cfg.Subject
	}

	recipients := opts.recipients
	if len(recipients) == 0 {
		recipients = cfg.Recipients
	}

	return service.Job{
		Request:    req,
		Flags:      flags,
		Subject:    subject,
		Recipients: append([]string(nil), recipients...),
	}, nil
}

func newWrapper(ctx context.Context, cfg model.Config, job service.Job, stdout, stderr io.Writer) (*service.Wrapper, error) {
	identity := host.Lookup(ctx)
	slog.DebugContext(ctx, "identity", "user", identity.User, "host", identity.Hostname)

	timeout, err := cfg.Command.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	r := runner.NewRunner()
	r.Timeout = timeout

	headers := mail.Headers{Identity: identity}
	if cfg.Mail.From != nil {
		headers.From = *cfg.Mail.From
	}
	var sender mail.Sender
	switch cfg.Mail.Transport {
	case model.TransportSMTP:
		if cfg.Mail.SMTP == nil {
			return nil, errors.New("mail.smtp is required for the smtp transport")
		}
		sender, err = mail.NewSMTP(headers, *cfg.Mail.SMTP)
		if err != nil {
			return nil, err
		}
	default:
		sender = mail.NewSendmail(headers, cfg.Mail.Sendmail)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Textfile != "" {
		name := job.Subject
		if name == "" {
			name = filepath.Base(job.Request.Path())
		}
		recorder = metrics.New(name)
	}

	composer := compose.Composer{Hostname: identity.Hostname}
	// a nil *Recorder must not end up as a non-nil interface
	var observer mail.Observer
	if recorder != nil {
		observer = recorder
	}
	dispatcher := mail.NewDispatcher(sender, observer)
	wrapper := service.NewWrapper(r, composer, dispatcher, stdout, stderr)
	return wrapper.WithMetrics(recorder, cfg.Metrics.Textfile), nil
}

func initConfig(cmd *cobra.Command, opts *options) error {
	// config errors go through the same handler as everything else
	slog.SetDefault(log.New(cmd.ErrOrStderr(), opts.verbose))

	explicit := true
	if envConfig, ok := os.LookupEnv(configEnv); ok {
		opts.configUsed = envConfig
	} else if opts.configPath != "" {
		opts.configUsed = opts.configPath
	} else {
		explicit = false
		for _, d := range []string{userConfigDir(), "/etc"} {
			path := filepath.Join(d, configFile)
			if exists(path) {
				opts.configUsed = path
				break
			}
		}
	}

	opts.config = model.DefaultConfig(cmd.Context())
	if opts.configUsed != "" {
		cfg, err := loadConfig(opts.configUsed)
		switch {
		case err == nil:
			opts.config = *cfg
		case explicit:
			return err
		default:
			// a broken system wide file must not stop every cron job
			slog.Error("ignoring configuration file", "path", opts.configUsed, "error", err)
			opts.configUsed = ""
		}
	}

	// --verbose has a precedence over config file
	if !opts.verbose && opts.config.Verbose != nil && *opts.config.Verbose {
		slog.SetDefault(log.New(cmd.ErrOrStderr(), true))
	}

	slog.Debug("configuration", "path", opts.configUsed)
	return nil
}

func loadConfig(path string) (*model.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := model.LoadConfig(f)
	if err != nil {
		for _, d := range model.CueErrDetails(err) {
			slog.Error("invalid configuration", d.Attr("detail"))
		}
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func userConfigDir() string {
	d, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(d, progName)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func versionString() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}
