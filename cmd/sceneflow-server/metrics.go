package main

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type metricMeta struct {
	typ, help string
	isMap     bool
	label     string
}

var metricMetas = map[string]metricMeta{
	"sceneflow_transitions_total":      {typ: "counter", help: "Scene transitions by mode", isMap: true, label: "mode"},
	"sceneflow_triggers_total":         {typ: "counter", help: "Triggers resolved by outcome", isMap: true, label: "outcome"},
	"sceneflow_scene_executions_total": {typ: "counter", help: "Scene executions by outcome", isMap: true, label: "outcome"},
	"sceneflow_flow_operations_total":  {typ: "counter", help: "Flow persistence operations", isMap: true, label: "op"},
	"sceneflow_gestures_total":         {typ: "counter", help: "Committed editor gestures", isMap: true, label: "kind"},
	"sceneflow_bundled_scenes_total":   {typ: "counter", help: "Scenes copied into flow bundles"},
	"sceneflow_bundled_files_total":    {typ: "counter", help: "Staged files copied into flow bundles"},
	"sceneflow_overlay_depth":          {typ: "gauge", help: "Scenes kept alive under the current overlay"},
	"sceneflow_fallbacks_total":        {typ: "counter", help: "Sessions that started the default scene"},
	"sceneflow_stale_fetches_total":    {typ: "counter", help: "Scene or trigger fetches discarded as stale"},
}

// promMetricsHandler renders expvar-published metrics in Prometheus text
// exposition format. Unknown integer vars are emitted as untyped gauges.
func promMetricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	varNames := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		varNames = append(varNames, kv.Key)
	})
	sort.Strings(varNames)

	for _, name := range varNames {
		v := expvar.Get(name)
		m, known := metricMetas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", name)
				_, _ = fmt.Fprintf(w, "%s %s\n", name, iv.String())
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		if !m.isMap {
			_, _ = fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			_, _ = fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote and newline.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
