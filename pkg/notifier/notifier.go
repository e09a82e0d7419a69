// Package notifier shows desktop toasts for build progress
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/types"
)

const appTitle = "Unreal Binary Builder"

// BuildNotifier sends toasts through the desktop notification service
type BuildNotifier struct {
	enabled bool
	sound   bool
	logger  logger.Logger
	send    func(title, message string) error
	beep    func() error
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Sound beeps on failures
	Sound bool
}

// New creates a new build notifier
func New(config Config, log logger.Logger) *BuildNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &BuildNotifier{
		enabled: config.Enabled,
		sound:   config.Sound,
		logger:  log,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
}

// WithSender replaces the toast transport (used by tests and headless runs)
func (n *BuildNotifier) WithSender(send func(title, message string) error) *BuildNotifier {
	n.send = send
	n.beep = func() error { return nil }
	return n
}

// Toast shows a message with a title derived from its severity
func (n *BuildNotifier) Toast(severity types.Severity, message string) {
	if !n.enabled {
		return
	}

	title := appTitle
	switch severity {
	case types.SeverityError:
		title = "❌ " + appTitle
	case types.SeverityWarning:
		title = "⚠️ " + appTitle
	}

	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}

	if severity == types.SeverityError && n.sound {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

// NotifyStageStarted announces a stage
func (n *BuildNotifier) NotifyStageStarted(stage types.StageState, detail string) {
	message := fmt.Sprintf("Building %s", stage.DisplayName())
	if detail != "" {
		message += " - " + detail
	}
	n.Toast(types.SeverityInfo, message)
}

// NotifyBuildFinished reports the end of a top-level run
func (n *BuildNotifier) NotifyBuildFinished(outcome types.Outcome) {
	switch {
	case outcome.Cancelled:
		n.Toast(types.SeverityWarning, fmt.Sprintf("%s cancelled", outcome.Stage.DisplayName()))
	case outcome.Success:
		n.Toast(types.SeverityInfo, fmt.Sprintf("%s finished in %s", outcome.Stage.DisplayName(), FormatDuration(outcome.Elapsed)))
	default:
		n.Toast(types.SeverityError, fmt.Sprintf("%s exited with code %d", outcome.Stage.DisplayName(), outcome.ExitCode))
	}
}

// NotifyQueueDrained reports that no pending plugin jobs remain
func (n *BuildNotifier) NotifyQueueDrained(processed int) {
	n.Toast(types.SeverityInfo, fmt.Sprintf("Finished plugin queue build with %d plugin(s)", processed))
}

// FormatDuration renders a duration as hh:mm:ss
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
