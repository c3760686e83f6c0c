package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"cfocopilot/internal/copilot"
)

// Events are sent to the chat page in the HX-Trigger header, one JSON
// object keyed by event name.
type Events map[string]any

const (
	EventAnswered         = "answer:ready"
	EventFormReset        = "form:reset"
	EventSnapshotReloaded = "snapshot:reloaded"
	EventNotification     = "show-notification"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// Answered reports the intent and snapshot behind an answer.
func (e Events) Answered(resp copilot.Response) Events {
	e[EventAnswered] = map[string]any{
		"intent":   string(resp.Intent.Kind),
		"snapshot": resp.SnapshotVersion,
		"cached":   resp.Cached,
	}
	return e
}

func (e Events) FormReset() Events {
	e[EventFormReset] = struct{}{}
	return e
}

func (e Events) SnapshotReloaded(version uint64) Events {
	e[EventSnapshotReloaded] = map[string]uint64{"version": version}
	return e
}

// Notify shows a toast; errors stay up longer.
func (e Events) Notify(kind NotificationType, message string) Events {
	duration := 3000
	if kind == NotificationError {
		duration = 5000
	}
	e[EventNotification] = map[string]any{"type": string(kind), "message": message, "duration": duration}
	return e
}

// Apply sets HX-Trigger on h. Nothing is set for an empty set.
func (e Events) Apply(h http.Header) {
	if len(e) == 0 {
		return
	}
	if data, err := json.Marshal(e); err == nil {
		h.Set("HX-Trigger", string(data))
	}
}

// fragment is an HTML partial for the chat page.
type fragment struct {
	status int
	body   []byte
	events Events
}

func newFragment(status int, body []byte) *fragment {
	return &fragment{status: status, body: body, events: Events{}}
}

// errorFragment escapes message into an error box and raises a toast.
func errorFragment(status int, message string) *fragment {
	f := newFragment(status, []byte(`<div class="error">`+template.HTMLEscapeString(message)+`</div>`))
	f.events.Notify(NotificationError, message)
	return f
}

func (f *fragment) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	f.events.Apply(w.Header())
	w.WriteHeader(f.status)
	_, _ = w.Write(f.body)
}
