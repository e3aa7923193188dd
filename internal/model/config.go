package model

import (
	"context"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	TransportSendmail = "sendmail"
	TransportSMTP     = "smtp"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
	// mail is optional in #Config, so the enum is looked up via #Mail
	transportSchema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}

	transportSchema = compiled.LookupPath(cue.ParsePath("#Mail.transport"))
	if transportSchema.Err() != nil {
		panic(transportSchema.Err())
	}
}

// Config is the optional configuration file. Every value set here is a
// default, command line flags take precedence.
type Config struct {
	Version    int      `json:"version" yaml:"version"` // fixed 0 for now
	Verbose    *bool    `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Combined   *bool    `json:"combined,omitempty" yaml:"combined,omitempty"`
	Subject    *string  `json:"subject,omitempty" yaml:"subject,omitempty"`
	Recipients []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Policy     Policy   `json:"policy" yaml:"policy"`
	Command    Command  `json:"command" yaml:"command"`
	Mail       Mail     `json:"mail" yaml:"mail"`
	Metrics    Metrics  `json:"metrics" yaml:"metrics"`
}

// Policy holds the suppression flags, they are OR-ed with the ones from the command line.
type Policy struct {
	NotOnSilence       bool `json:"not_on_silence,omitempty" yaml:"not_on_silence"`
	NotOnSuccess       bool `json:"not_on_success,omitempty" yaml:"not_on_success"`
	NotOnSilentSuccess bool `json:"not_on_silent_success,omitempty" yaml:"not_on_silent_success"`
}

type Command struct {
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // empty => wait indefinitely
}

type Mail struct {
	Transport string    `json:"transport,omitempty" yaml:"transport"` // "sendmail" | "smtp"
	From      *string   `json:"from,omitempty" yaml:"from,omitempty"`
	Sendmail  *Sendmail `json:"sendmail,omitempty" yaml:"sendmail,omitempty"`
	SMTP      *SMTP     `json:"smtp,omitempty" yaml:"smtp,omitempty"`
}

type Sendmail struct {
	Path string   `json:"path" yaml:"path"`
	Args []string `json:"args" yaml:"args"`
}

type SMTP struct {
	Host               string `json:"host" yaml:"host"`
	Port               int    `json:"port" yaml:"port"`
	User               string `json:"user,omitempty" yaml:"user,omitempty"`
	Password           string `json:"password,omitempty" yaml:"password,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	DefaultRecipient   string `json:"default_recipient" yaml:"default_recipient"`
	RetryCount         int    `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
	RetryBackoff       string `json:"retry_backoff,omitempty" yaml:"retry_backoff,omitempty"`
}

type Metrics struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Mail: Mail{
			Transport: TransportSendmail,
			Sendmail:  DefaultSendmail(),
		},
	}
}

func DefaultSendmail() *Sendmail {
	return &Sendmail{
		Path: "sendmail",
		Args: []string{"-t", "-oi"},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}
	if out.Version != 0 {
		return nil, fmt.Errorf("%w: %d", ErrConfigVersion, out.Version)
	}
	if out.Mail.Transport == "" {
		out.Mail.Transport = TransportSendmail
	}
	if out.Mail.Transport == TransportSendmail && out.Mail.Sendmail == nil {
		out.Mail.Sendmail = DefaultSendmail()
	}

	return &out, nil
}

// TimeoutDuration returns the configured command timeout, zero means none.
func (c Command) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing command.timeout: %w", err)
	}
	return d, nil
}

// Backoff returns the delay before the first retry, default 100ms.
func (s SMTP) Backoff() (time.Duration, error) {
	if s.RetryBackoff == "" {
		return 100 * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s.RetryBackoff)
	if err != nil {
		return 0, fmt.Errorf("parsing mail.smtp.retry_backoff: %w", err)
	}
	return d, nil
}
