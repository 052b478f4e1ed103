package notify

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"
)

// ToastNotifier delivers Windows toast notifications for operator-facing
// escalations (circuit-breaker trips, needs_review transitions). It is a
// no-op on every other platform.
type ToastNotifier struct {
	appID        string
	dashboardURL string
}

// NewToastNotifier creates a new toast notifier.
func NewToastNotifier(appID, dashboardURL string) *ToastNotifier {
	if appID == "" {
		appID = "MissionControl"
	}
	if dashboardURL == "" {
		dashboardURL = "http://127.0.0.1:8080"
	}
	return &ToastNotifier{appID: appID, dashboardURL: dashboardURL}
}

// IsSupported returns true if toast notifications are supported on this platform.
func (t *ToastNotifier) IsSupported() bool {
	return runtime.GOOS == "windows"
}

// NotifyBreakerTrip sends a high-priority toast when a circuit breaker trips.
func (t *ToastNotifier) NotifyBreakerTrip(missionID, reason string) error {
	if !t.IsSupported() {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   "Mission locked: circuit breaker tripped",
		Message: fmt.Sprintf("%s: %s", missionID, reason),
		Audio:   toast.IM,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Mission Control", Arguments: t.dashboardURL},
		},
	}
	return notification.Push()
}

// NotifyNeedsReview sends a toast when a mission escalates to needs_review.
func (t *ToastNotifier) NotifyNeedsReview(missionID, reason string) error {
	if !t.IsSupported() {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   "Mission needs review",
		Message: fmt.Sprintf("%s: %s", missionID, reason),
		Audio:   toast.Default,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Review", Arguments: t.dashboardURL},
		},
	}
	return notification.Push()
}
