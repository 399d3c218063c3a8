package web

import (
	"html/template"
	"io"
	"time"

	"relay-service/internal/types"
)

var pageTemplate = template.Must(template.New("status").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return time.Since(t).Round(time.Second).String()
	},
}).Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Relay service</title>
    <style>
      body { font-family: sans-serif; margin: 2em; }
      .relay { display: inline-block; width: 5em; padding: 0.5em; margin: 0.2em; text-align: center; border-radius: 4px; }
      .on { background: #4caf50; color: white; }
      .off { background: #ddd; }
      .error { color: #b00020; }
    </style>
  </head>
  <body>
    <h1>Relay service</h1>
    <p>Version: {{.Version}}</p>
    <p>State: <span id="state">{{.Status.State}}</span> (for <span id="since">{{ago .Status.Since}}</span>)</p>
    <p>Controller: <span id="controller">{{.Status.Controller}}</span></p>
    {{with .Status.Kind}}<p>Mapping: {{.}}</p>{{end}}
    {{with .Status.LastError}}<p class="error">Last error: {{.}}</p>{{end}}
    <div id="relays">
      {{range $i, $on := .Status.Relays}}
      <span class="relay {{if $on}}on{{else}}off{{end}}">Relay {{inc $i}}</span>
      {{end}}
    </div>
    <script>
      (function () {
        var proto = location.protocol === "https:" ? "wss://" : "ws://";
        var ws = new WebSocket(proto + location.host + "/api/ws");
        ws.onmessage = function (msg) {
          var st = JSON.parse(msg.data);
          document.getElementById("state").textContent = st.state;
          document.getElementById("controller").textContent =
            st.connected && st.controller_name ? st.controller_name +
              (st.device_path ? " (" + st.device_path + ")" : "") +
              (st.address ? " [" + st.address + "]" : "") : "Not found";
          var relays = document.getElementById("relays").children;
          for (var i = 0; i < relays.length && i < st.relays.length; i++) {
            relays[i].className = "relay " + (st.relays[i] ? "on" : "off");
          }
        };
        ws.onclose = function () { setTimeout(function () { location.reload(); }, 5000); };
      })();
    </script>
  </body>
</html>
`))

type pageData struct {
	Version string
	Status  types.Status
}

func renderPage(w io.Writer, version string, st types.Status) error {
	return pageTemplate.Execute(w, pageData{Version: version, Status: st})
}
