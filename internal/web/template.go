package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/gpio-shutdown/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
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
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%gs", d.Seconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>GPIO Shutdown</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pressed { color: orange; font-weight: bold; }
.released { color: #888; }
.armed { color: green; }
.requested { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>GPIO Shutdown</h1>

<h2>Button</h2>
<table>
<tr><th>State</th><td id="button-state" class="{{if .Pressed}}pressed{{else}}released{{end}}">{{.ButtonState}}</td></tr>
<tr><th>Gesture</th><td>{{.Config.Gesture}} (hold {{seconds .Config.HoldTime}})</td></tr>
<tr><th>Shutdown</th><td class="{{if .ShutdownRequested}}requested{{else}}armed{{end}}">{{if .ShutdownRequested}}requested{{else}}armed{{end}}</td></tr>
{{if .LastEdge}}<tr><th>Last edge</th><td>{{.LastEdge}} at {{.LastEdgeAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Edge Counts</h2>
<table>
<tr><th>Pressed</th><td>{{.Counts.Pressed}}</td></tr>
<tr><th>Released</th><td>{{.Counts.Released}}</td></tr>
<tr><th>Held</th><td>{{.Counts.Held}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Line</th><td>{{.Config.Chip}} line {{.Config.Line}}</td></tr>
<tr><th>Config</th><td>{{.Config.ConfigPath}}</td></tr>
<tr><th>Command</th><td>{{.Config.ShutdownCommand}}{{if .Config.DryRun}} (dry run){{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Warn("render status page", "err", err)
	}
}
