package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/email-output/internal/metrics"
	"github.com/CZERTAINLY/email-output/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()
	r := metrics.New("backup")

	finished := time.Unix(1700000000, 0)
	r.ObserveRun(model.ExecutionResult{
		ExitCode:   3,
		StartedAt:  finished.Add(-1500 * time.Millisecond),
		FinishedAt: finished,
	}, true)
	r.MailSent("sendmail")
	r.MailSent("sendmail")
	r.MailFailed("sendmail")

	expected := `
# HELP email_output_last_exit_code Exit code of the last run of the command
# TYPE email_output_last_exit_code gauge
email_output_last_exit_code{job="backup"} 3
# HELP email_output_last_duration_seconds Wall time of the last run of the command
# TYPE email_output_last_duration_seconds gauge
email_output_last_duration_seconds{job="backup"} 1.5
# HELP email_output_mail_sent 1 if the last run decided to send a notification
# TYPE email_output_mail_sent gauge
email_output_mail_sent{job="backup"} 1
# HELP email_output_mail_send_success_total Successful mail deliveries
# TYPE email_output_mail_send_success_total counter
email_output_mail_send_success_total{job="backup",transport="sendmail"} 2
# HELP email_output_mail_send_failure_total Failed mail deliveries
# TYPE email_output_mail_send_failure_total counter
email_output_mail_send_failure_total{job="backup",transport="sendmail"} 1
`
	err := testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected),
		"email_output_last_exit_code",
		"email_output_last_duration_seconds",
		"email_output_mail_sent",
		"email_output_mail_send_success_total",
		"email_output_mail_send_failure_total",
	)
	require.NoError(t, err)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	r := metrics.New("backup")
	r.ObserveRun(model.ExecutionResult{ExitCode: 0, FinishedAt: time.Unix(1700000000, 0)}, false)

	path := filepath.Join(t.TempDir(), "backup.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `email_output_last_exit_code{job="backup"} 0`)
	require.Contains(t, string(raw), `email_output_mail_sent{job="backup"} 0`)
	require.Contains(t, string(raw), `email_output_last_run_timestamp_seconds{job="backup"} 1.7e+09`)
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()
	var r *metrics.Recorder
	r.ObserveRun(model.ExecutionResult{}, true)
	r.MailSent("smtp")
	r.MailFailed("smtp")
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}
