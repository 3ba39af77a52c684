// Package systemd reports service state to systemd when the process runs
// under a unit with NOTIFY_SOCKET set. Outside systemd every call is a no-op.
package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify state lines.
type Notifier struct {
	// notify is daemon.SdNotify; replaced in tests.
	notify func(unsetEnv bool, state string) (bool, error)
}

func New() *Notifier { return &Notifier{notify: daemon.SdNotify} }

// Ready reports READY=1 with a human-readable status.
func (n *Notifier) Ready(status string) (bool, error) {
	return n.send(daemon.SdNotifyReady, status)
}

// Stopping reports STOPPING=1.
func (n *Notifier) Stopping() (bool, error) {
	return n.send(daemon.SdNotifyStopping, "")
}

func (n *Notifier) send(state, status string) (bool, error) {
	if n == nil || n.notify == nil {
		return false, nil
	}
	if status != "" {
		state += "\nSTATUS=" + status
	}
	return n.notify(false, state)
}
