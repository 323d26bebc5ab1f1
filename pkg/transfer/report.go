// Copyright 2025 Emrys Liu
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transfer

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

// buildReport renders the email subject and HTML body for a finished
// run. The subject escalates with severity, worst condition first:
// run-level error, failure count at or above the configured
// threshold, every found file failed, some files failed, all well.
func buildReport(o *Outcome, email config.EmailConfig, logFile, traceID string) (string, string) {
	tally := o.Tally()
	errs := o.Errors()

	subject := email.Subject
	switch {
	case len(errs) > 0:
		subject = "[ERROR] " + subject
	case tally.Failed > 0 && tally.Failed >= email.FailureThreshold:
		subject = fmt.Sprintf("[WARNING] %s: %d transfers failed", subject, tally.Failed)
	case tally.Failed > 0 && tally.Failed == tally.Found:
		subject = "[FAILED] " + subject + ": all transfers failed"
	case tally.Failed > 0:
		subject = "[PARTIAL] " + subject
	}

	var b strings.Builder
	b.WriteString("<html><body>\n")
	b.WriteString("<h2>File Transfer Report</h2>\n")

	b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">\n")
	b.WriteString("<tr><th>Found</th><th>Succeeded</th><th>Skipped</th><th>Failed</th></tr>\n")
	fmt.Fprintf(&b, "<tr><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>\n",
		tally.Found, tally.Succeeded, tally.Skipped, tally.Failed)
	b.WriteString("</table>\n")

	writeNameList(&b, "Files found", o.Found())
	writeRenamedList(&b, o.Renamed())
	writeNameList(&b, "Transferred", o.Succeeded())
	writeNameList(&b, "Skipped", o.Skipped())
	writeFailedList(&b, o.Failed())

	if len(errs) > 0 {
		b.WriteString("<h3>Errors</h3>\n<ul>\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(e))
		}
		b.WriteString("</ul>\n")
	}

	fmt.Fprintf(&b, "<p>Log file: %s<br>\nTrace ID: %s</p>\n",
		html.EscapeString(logFile), html.EscapeString(traceID))
	b.WriteString("</body></html>\n")

	return subject, b.String()
}

func writeNameList(b *strings.Builder, title string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "<h3>%s (%d)</h3>\n<ul>\n", title, len(names))
	for _, name := range names {
		fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(name))
	}
	b.WriteString("</ul>\n")
}

func writeRenamedList(b *strings.Builder, renamed map[string]string) {
	if len(renamed) == 0 {
		return
	}
	names := make([]string, 0, len(renamed))
	for name := range renamed {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(b, "<h3>Renamed (%d)</h3>\n<ul>\n", len(renamed))
	for _, name := range names {
		fmt.Fprintf(b, "<li>%s &rarr; %s</li>\n",
			html.EscapeString(name), html.EscapeString(renamed[name]))
	}
	b.WriteString("</ul>\n")
}

func writeFailedList(b *strings.Builder, failed map[string]string) {
	if len(failed) == 0 {
		return
	}
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(b, "<h3>Failed (%d)</h3>\n<ul>\n", len(failed))
	for _, name := range names {
		fmt.Fprintf(b, "<li>%s: %s</li>\n",
			html.EscapeString(name), html.EscapeString(failed[name]))
	}
	b.WriteString("</ul>\n")
}
