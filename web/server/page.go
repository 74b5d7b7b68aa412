package main

import (
	"html/template"
	"net/http"
	"time"

	"github.com/Bucknalla/go-robot-locus/locus"
)

// Page data: bearer and path are handed to the browser as hidden inputs.
type pageData struct {
	Bearer string
	Path   string
	Width  int
	Height int
}

var pageTemplate = template.Must(template.New("robotLocus").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Robot Locus</title>
<style>
body { font-family: sans-serif; margin: 1em; }
#controls > * { margin-right: .5em; }
#status span { display: block; }
.hidden { display: none; }
</style>
</head>
<body>
<input type="hidden" id="bearer" value="{{.Bearer}}">
<input type="hidden" id="path" value="{{.Path}}">
<div id="controls">
  <input type="datetime-local" id="st_datetime_value">
  <input type="datetime-local" id="et_datetime_value">
  <span id="idle_buttons">
    <button id="show" disabled>show</button>
    <button id="clear">clear</button>
  </span>
  <span id="running_buttons" class="hidden">
    <button id="stop" disabled>stop</button>
  </span>
  <span id="progress"></span>
</div>
<div id="status">
  <span id="point_num"></span>
  <span id="time"></span>
  <span id="pos_x"></span>
  <span id="pos_y"></span>
  <span id="pos_theta"></span>
</div>
<img id="locus" src="/api/plot.svg" width="{{.Width}}" height="{{.Height}}" alt="robot locus">
<script>
const $ = (id) => document.getElementById(id);
const range = () => ({st: $("st_datetime_value").value, et: $("et_datetime_value").value});
let controls = {show_enabled: false, stop_enabled: false, idle_visible: true, running_visible: false};

const applyControls = () => {
  const r = range();
  $("show").disabled = !(controls.idle_visible && r.st && r.et);
  $("stop").disabled = !controls.stop_enabled;
  $("idle_buttons").classList.toggle("hidden", !controls.idle_visible);
  $("running_buttons").classList.toggle("hidden", !controls.running_visible);
};

const applyStatus = (s) => {
  const d = s.display;
  $("progress").textContent = d.progress;
  for (const k of ["point_num", "time", "pos_x", "pos_y", "pos_theta"]) {
    $(k).textContent = d[k];
  }
  $("locus").src = "/api/plot.svg?i=" + s.index + "&n=" + s.points.length + "&t=" + Date.now();
};

const post = (url, body) => fetch(url, {
  method: "POST",
  headers: {"Content-Type": "application/json"},
  body: body ? JSON.stringify(body) : undefined,
});

$("show").onclick = () => post("/api/show", {...range(), bearer: $("bearer").value, path: $("path").value});
$("stop").onclick = () => post("/api/stop");
$("clear").onclick = () => post("/api/clear");
$("st_datetime_value").onchange = applyControls;
$("et_datetime_value").onchange = applyControls;

const connect = () => {
  const proto = location.protocol === "https:" ? "wss://" : "ws://";
  const ws = new WebSocket(proto + location.host + "/api/ws");
  ws.onmessage = (e) => {
    const msg = JSON.parse(e.data);
    if (msg.type === "controls") {
      controls = msg.data;
      applyControls();
    } else if (msg.type === "status") {
      applyStatus(msg.data);
    }
  };
  ws.onclose = () => setTimeout(connect, 1000);
};
connect();
</script>
</body>
</html>
`))

func (ws *WebServer) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Bearer: ws.settings.Bearer,
		Path:   locus.PathFor(ws.settings.Prefix),
		Width:  700,
		Height: 700,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		ws.log.Error().Err(err).Msg("failed to render page")
	}
}

// handlePositions serves synthetic positions for [st, et).
func (ws *WebServer) handlePositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := locus.ParseRange(q.Get("st"), q.Get("et"), ws.loc)
	if err != nil {
		ws.log.Debug().Err(err).Str("st", q.Get("st")).Str("et", q.Get("et")).Msg("invalid positions range")
		writeError(w, http.StatusBadRequest)
		return
	}

	samples := locus.DemoSamples(start, end, time.Second)
	if samples == nil {
		samples = []locus.Sample{}
	}
	ws.log.Debug().Int("count", len(samples)).Msg("serving demo positions")
	writeJSON(w, http.StatusOK, samples)
}
