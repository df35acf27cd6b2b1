package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// GaugeFunc reports a value sampled at scrape time, such as the number of
// live connections.
type GaugeFunc func() float64

// Handler renders m in the Prometheus text format. Extra gauges are
// sampled on every scrape and emitted in name order.
func Handler(m *Metrics, version string, gauges map[string]GaugeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s := m.Snapshot()
		var out strings.Builder

		writeMetric(&out, "photowall_info", "gauge", "Build information",
			fmt.Sprintf("photowall_info{version=\"%s\"} 1", label(version)))
		writeMetric(&out, "photowall_requests_total", "counter", "Total number of HTTP requests",
			fmt.Sprintf("photowall_requests_total %d", s.RequestsTotal))
		writeMetric(&out, "photowall_request_errors_total", "counter", "HTTP responses by error class",
			fmt.Sprintf("photowall_request_errors_total{class=\"4xx\"} %d", s.RequestErrors4xx),
			fmt.Sprintf("photowall_request_errors_total{class=\"5xx\"} %d", s.RequestErrors5xx))
		writeMetric(&out, "photowall_submissions_total", "counter", "Persisted submissions",
			fmt.Sprintf("photowall_submissions_total %d", s.SubmissionsTotal))

		kinds := make([]string, 0, len(s.SubmissionFailures))
		for k := range s.SubmissionFailures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		lines := make([]string, 0, len(kinds))
		for _, k := range kinds {
			lines = append(lines, fmt.Sprintf("photowall_submission_failures_total{kind=\"%s\"} %d", label(k), s.SubmissionFailures[k]))
		}
		writeMetric(&out, "photowall_submission_failures_total", "counter", "Failed submissions by kind", lines...)

		writeMetric(&out, "photowall_images_uploaded_total", "counter", "Images stored in the media service",
			fmt.Sprintf("photowall_images_uploaded_total %d", s.ImagesUploadedTotal))
		writeMetric(&out, "photowall_image_bytes_total", "counter", "Bytes of image data stored",
			fmt.Sprintf("photowall_image_bytes_total %d", s.ImageBytesTotal))
		writeMetric(&out, "photowall_upload_errors_total", "counter", "Failed media uploads",
			fmt.Sprintf("photowall_upload_errors_total %d", s.UploadErrorsTotal))
		writeMetric(&out, "photowall_broadcasts_total", "counter", "Live update events fanned out",
			fmt.Sprintf("photowall_broadcasts_total %d", s.BroadcastsTotal))
		writeMetric(&out, "photowall_cleanup_deletes_total", "counter", "Compensating media deletes",
			fmt.Sprintf("photowall_cleanup_deletes_total{result=\"ok\"} %d", s.CleanupDeletesTotal),
			fmt.Sprintf("photowall_cleanup_deletes_total{result=\"error\"} %d", s.CleanupDeleteErrsTotal))
		writeMetric(&out, "photowall_admin_registrations_total", "counter", "Admin registrations by outcome",
			fmt.Sprintf("photowall_admin_registrations_total{result=\"created\"} %d", s.AdminRegistrationsTotal),
			fmt.Sprintf("photowall_admin_registrations_total{result=\"conflict\"} %d", s.AdminConflictsTotal))
		writeMetric(&out, "photowall_logins_total", "counter", "Admin logins by outcome",
			fmt.Sprintf("photowall_logins_total{result=\"success\"} %d", s.LoginSuccessTotal),
			fmt.Sprintf("photowall_logins_total{result=\"failure\"} %d", s.LoginFailuresTotal))

		names := make([]string, 0, len(gauges))
		for name := range gauges {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			writeMetric(&out, name, "gauge", name,
				fmt.Sprintf("%s %g", name, gauges[name]()))
		}

		writeMetric(&out, "photowall_uptime_seconds", "counter", "Application uptime in seconds",
			fmt.Sprintf("photowall_uptime_seconds %.0f", s.UptimeSeconds))

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
	}
}

func writeMetric(out *strings.Builder, name, kind, help string, samples ...string) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s %s\n", name, kind)
	for _, s := range samples {
		out.WriteString(s)
		out.WriteByte('\n')
	}
	out.WriteByte('\n')
}

// label escapes quotes and backslashes in a label value
func label(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}
