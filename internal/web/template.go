package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/kioskd/internal/settings"
	"github.com/sweeney/kioskd/internal/status"
)

var funcs = template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(indexHTML))

var settingsTmpl = template.Must(template.New("settings").Funcs(funcs).Parse(settingsHTML))

const style = `<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
input { font-family: monospace; width: 100%; }
</style>`

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Kiosk {{.Config.KioskID}}</title>
` + style + `
</head>
<body>
<h1>Kiosk {{.Config.KioskID}}</h1>

<h2>Display</h2>
<table>
<tr><th>State</th><td class="{{if .Idle}}idle{{else}}active{{end}}">{{if .Idle}}IDLE{{else}}ACTIVE{{end}}</td></tr>
<tr><th>Brightness</th><td>{{.Brightness}}%</td></tr>
<tr><th>Controller</th><td>{{if .Running}}running{{else}}paused{{end}}{{if not .Loaded}} (defaults){{end}}</td></tr>
<tr><th>Idle timeout</th><td>{{if eq (ms .Kiosk.IdleTimeout) 0}}disabled{{else}}{{ms .Kiosk.IdleTimeout}}ms{{end}}</td></tr>
<tr><th>Idle brightness</th><td>{{.Kiosk.IdleBrightness}}%</td></tr>
<tr><th>Active brightness</th><td>{{.Kiosk.ActiveBrightness}}%</td></tr>
<tr><th>Start URL</th><td>{{.Settings.StartURL}}</td></tr>
<tr><th>Rotation</th><td>{{.Settings.Rotation}}</td></tr>
</table>

<h2>Input</h2>
<table>
<tr><th>Interactions</th><td>{{.Interactions}}</td></tr>
<tr><th>Last interaction</th><td>{{ts .LastInteraction}}</td></tr>
<tr><th>Taps</th><td>{{.TapCount}} / {{.Config.RequiredTaps}}</td></tr>
<tr><th>Unlocks</th><td>{{.Unlocks}}</td></tr>
<tr><th>Settings</th><td>{{if .Unlocked}}<a href="/settings">unlocked</a>{{else}}locked{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}off{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{ts .StartTime}}</td></tr>
<tr><th>Session</th><td>{{.Config.SessionID}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Backlight</th><td>{{if .Config.Backlight}}{{.Config.Backlight}}{{else}}none{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

const settingsHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Kiosk settings</title>
` + style + `
</head>
<body>
<h1>Settings</h1>
{{if .Message}}<p class="error">{{.Message}}</p>{{end}}
<form method="post" action="/settings">
<table>
<tr><th>Start URL</th><td><input name="start_url" value="{{.Values.StartURL}}"></td></tr>
<tr><th>Rotation</th><td><select name="rotation">{{range .Rotations}}<option value="{{.}}"{{if eq . $.Values.Rotation}} selected{{end}}>{{.}}</option>{{end}}</select></td></tr>
<tr><th>Check interval (ms)</th><td><input name="check_interval_ms" value="{{ms .Values.CheckInterval}}"></td></tr>
<tr><th>Idle timeout (s)</th><td><input name="idle_timeout_seconds" value="{{.Values.IdleTimeoutSeconds}}"></td></tr>
<tr><th>Idle brightness (%)</th><td><input name="idle_brightness" value="{{.Values.IdleBrightness}}"></td></tr>
<tr><th>Active brightness (%)</th><td><input name="active_brightness" value="{{.Values.ActiveBrightness}}"></td></tr>
</table>
<button type="submit">Save</button>
</form>
<p><a href="/">Status</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() and Unlocked() methods but the template reads fields.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Unlocked bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Unlocked: snap.Unlocked(),
	}
	return indexTmpl.Execute(w, data)
}

func renderSettingsHTML(w io.Writer, v settings.Values, msg string) error {
	data := struct {
		Values    settings.Values
		Rotations []settings.Rotation
		Message   string
	}{
		Values:    v,
		Rotations: settings.Rotations,
		Message:   msg,
	}
	return settingsTmpl.Execute(w, data)
}
