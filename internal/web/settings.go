package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/kioskd/internal/settings"
)

// errBadForm marks a field that could not be parsed.
var errBadForm = errors.New("web: bad form value")

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !s.kiosk.Unlocked() {
		http.Error(w, "locked", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.renderSettings(w, r, "", http.StatusOK)
	case http.MethodPost:
		s.saveSettings(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, msg string, code int) {
	v, err := s.kiosk.Settings(r.Context())
	if err != nil {
		log.Printf("web: load settings: %v", err)
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := renderSettingsHTML(w, v, msg); err != nil {
		log.Printf("web: render settings: %v", err)
	}
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cur, err := s.kiosk.Settings(r.Context())
	if err != nil {
		log.Printf("web: load settings: %v", err)
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}
	v, err := applyForm(cur, r)
	if err == nil {
		err = s.kiosk.UpdateSettings(r.Context(), v)
	}
	switch {
	case err == nil:
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
	case errors.Is(err, errBadForm),
		errors.Is(err, settings.ErrInvalidRotation),
		errors.Is(err, settings.ErrEmptyURL),
		errors.Is(err, settings.ErrInvalidInterval):
		s.renderSettings(w, r, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("web: save settings: %v", err)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
	}
}

// applyForm overlays the submitted fields on cur. Missing fields keep
// their current value.
func applyForm(cur settings.Values, r *http.Request) (settings.Values, error) {
	v := cur

	if raw, ok := formValue(r, "start_url"); ok {
		v.StartURL = raw
	}
	if raw, ok := formValue(r, "rotation"); ok {
		rot, err := settings.ParseRotation(raw)
		if err != nil {
			return cur, err
		}
		v.Rotation = rot
	}
	if raw, ok := formValue(r, "check_interval_ms"); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n > settings.MaxCheckIntervalMs {
			return cur, fmt.Errorf("%w: check_interval_ms %q", errBadForm, raw)
		}
		v.CheckInterval = time.Duration(n) * time.Millisecond
	}
	if raw, ok := formValue(r, "idle_timeout_seconds"); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 || n > settings.MaxIdleTimeoutSeconds {
			return cur, fmt.Errorf("%w: idle_timeout_seconds %q", errBadForm, raw)
		}
		v.IdleTimeoutSeconds = n
	}
	if raw, ok := formValue(r, "idle_brightness"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cur, fmt.Errorf("%w: idle_brightness %q", errBadForm, raw)
		}
		v.IdleBrightness = n
	}
	if raw, ok := formValue(r, "active_brightness"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cur, fmt.Errorf("%w: active_brightness %q", errBadForm, raw)
		}
		v.ActiveBrightness = n
	}
	return v, nil
}

func formValue(r *http.Request, key string) (string, bool) {
	if _, ok := r.PostForm[key]; !ok {
		return "", false
	}
	return strings.TrimSpace(r.PostForm.Get(key)), true
}
