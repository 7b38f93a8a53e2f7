package annotation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// Report aggregates the annotations scanned out of one environment's captured
// output. It is embedded in run reports, hence the JSON tags.
type Report struct {
	Errors   []string               `json:"errors,omitempty"`   // proc.error messages in emission order
	Warnings []string               `json:"warnings,omitempty"` // proc.warning messages
	Infos    []string               `json:"infos,omitempty"`    // proc.info messages
	Progress float64                `json:"progress,omitempty"` // latest proc.progress value
	RC       int                    `json:"rc,omitempty"`       // latest proc.rc value
	HasRC    bool                   `json:"has_rc,omitempty"`   // true once a proc.rc annotation was seen
	Outputs  map[string]interface{} `json:"outputs,omitempty"`  // saved outputs (non-reserved keys), later lines win
}

// HasAnnotations reports whether the scan found anything at all.
func (r *Report) HasAnnotations() bool {
	return len(r.Errors) > 0 || len(r.Warnings) > 0 || len(r.Infos) > 0 ||
		r.Progress > 0 || r.HasRC || len(r.Outputs) > 0
}

// Scan extracts annotations from captured command output. A line contributes
// only when it is a complete JSON object; everything else is ordinary output
// and is ignored. Reserved proc.* keys feed the diagnostic fields, all other
// keys are collected as saved outputs with last-line-wins merging.
func Scan(output string) Report {
	report := Report{Outputs: make(map[string]interface{})}

	scanner := bufio.NewScanner(strings.NewReader(output))
	// Annotation lines can carry sizable saved outputs; allow up to 1 MiB.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}

		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}

		for key, value := range obj {
			switch key {
			case KeyError:
				report.Errors = append(report.Errors, stringify(value))
			case KeyWarning:
				report.Warnings = append(report.Warnings, stringify(value))
			case KeyInfo:
				report.Infos = append(report.Infos, stringify(value))
			case KeyProgress:
				if f, ok := value.(float64); ok && f >= 0 && f <= 1 {
					report.Progress = f
				}
			case KeyRC:
				if f, ok := value.(float64); ok {
					report.RC = int(f)
					report.HasRC = true
				}
			default:
				report.Outputs[key] = value
			}
		}
	}

	return report
}

// stringify renders an annotation value for diagnostic fields. The emitters
// always produce strings; tolerate other JSON values from foreign writers.
func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
