package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/mail"

	"github.com/robfig/cron/v3"
)

// Config holds the application specific settings. It follows the common
// cfg.Registerable and cfg.Validatable shape used by every package.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	PrincipalsFile        string
	EnvFile               string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SMTPTLS               string
	SMTPTimeoutSeconds    int
	MailFrom              string
	DefaultHREmail        string
	SlackWebhookURL       string
	RequireAcknowledge    bool
	ReportSchedule        string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.PrincipalsFile, "principals-file", "", "YAML file mapping bearer tokens to users and roles")
	fs.StringVar(&c.EnvFile, "env-file", "", "optional .env file loaded before reading CONFIDE_ environment variables")
	fs.StringVar(&c.SMTPHost, "smtp-host", "", "SMTP relay host for outgoing notification mail")
	fs.IntVar(&c.SMTPPort, "smtp-port", 587, "SMTP relay port (1..65535)")
	fs.StringVar(&c.SMTPUsername, "smtp-username", "", "SMTP username (empty = no auth)")
	fs.StringVar(&c.SMTPPassword, "smtp-password", "", "SMTP password")
	fs.StringVar(&c.SMTPTLS, "smtp-tls", "opportunistic", "SMTP TLS policy: opportunistic, mandatory or none")
	fs.IntVar(&c.SMTPTimeoutSeconds, "smtp-timeout-seconds", 15, "SMTP dial and send timeout (1..120)")
	fs.StringVar(&c.MailFrom, "mail-from", "noreply@example.com", "sender address for notification mail")
	fs.StringVar(&c.DefaultHREmail, "default-hr-email", "", "HR address applied at startup when none is configured yet")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for new-message alerts")
	fs.BoolVar(&c.RequireAcknowledge, "require-acknowledge", false, "require acknowledgement before a message can be resolved")
	fs.StringVar(&c.ReportSchedule, "report-schedule", "0 8 1 * *", "cron spec for the monthly report mail (empty = disabled)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.PrincipalsFile == "" {
		errs = append(errs, errors.New("PRINCIPALS_FILE is required"))
	}

	// Mail transport
	if c.SMTPHost == "" {
		errs = append(errs, errors.New("SMTP_HOST is required"))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d (must be 1..65535)", c.SMTPPort))
	}
	switch c.SMTPTLS {
	case "opportunistic", "mandatory", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid SMTP_TLS %q (must be opportunistic, mandatory or none)", c.SMTPTLS))
	}
	if c.SMTPTimeoutSeconds <= 0 || c.SMTPTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid SMTP_TIMEOUT_SECONDS %d (must be 1..120)", c.SMTPTimeoutSeconds))
	}
	if !bareAddress(c.MailFrom) {
		errs = append(errs, fmt.Errorf("invalid MAIL_FROM %q", c.MailFrom))
	}
	if c.DefaultHREmail != "" && !bareAddress(c.DefaultHREmail) {
		errs = append(errs, fmt.Errorf("invalid DEFAULT_HR_EMAIL %q", c.DefaultHREmail))
	}

	if c.ReportSchedule != "" {
		if _, err := cron.ParseStandard(c.ReportSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid REPORT_SCHEDULE %q: %w", c.ReportSchedule, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func bareAddress(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Name == "" && a.Address == s
}
