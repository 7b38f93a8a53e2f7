// Package annotation implements the runtime annotation protocol: single-line
// JSON objects that commands running inside verification environments print
// to report structured results (saved outputs, diagnostics, progress, return
// codes) back to the orchestrator.
package annotation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Reserved annotation keys.
const (
	KeyError    = "proc.error"
	KeyWarning  = "proc.warning"
	KeyInfo     = "proc.info"
	KeyProgress = "proc.progress"
	KeyRC       = "proc.rc"
)

// parseValue interprets a raw string the way the protocol requires: the value
// is used as-is when it parses as JSON, otherwise it is carried as a plain
// string. A quoted input like `"0"` therefore stays a string while `0` becomes
// a number.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// marshal renders an annotation object as a single JSON line. Key order
// follows encoding/json (lexicographic).
func marshal(obj map[string]interface{}) string {
	data, err := json.Marshal(obj)
	if err != nil {
		// Only reachable with values encoding/json cannot represent; the
		// emitters below never construct such values.
		return fmt.Sprintf(`{"%s": %q}`, KeyError, "annotation marshal: "+err.Error())
	}
	return string(data)
}

// Save renders {key: value} where value is JSON-parsed when possible and kept
// as a string otherwise.
func Save(key, value string) string {
	return marshal(map[string]interface{}{key: parseValue(value)})
}

// SaveList renders {key: [values...]} with each value JSON-parsed when
// possible.
func SaveList(key string, values ...string) string {
	list := make([]interface{}, 0, len(values))
	for _, v := range values {
		list = append(list, parseValue(v))
	}
	return marshal(map[string]interface{}{key: list})
}

// SaveFile renders {key: {"file": path}} with optional references:
// {key: {"file": path, "refs": [refs...]}}.
func SaveFile(key, path string, refs ...string) string {
	entry := map[string]interface{}{"file": path}
	if len(refs) > 0 {
		entry["refs"] = refs
	}
	return marshal(map[string]interface{}{key: entry})
}

// SaveFileList renders {key: [{"file": ...}, ...]} from file-refs
// specifications of the form "<path>" or "<path>:<ref1>,<ref2>".
func SaveFileList(key string, entries ...string) (string, error) {
	list := make([]interface{}, 0, len(entries))
	for _, spec := range entries {
		if !strings.Contains(spec, ":") {
			list = append(list, map[string]interface{}{"file": spec})
			continue
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", fmt.Errorf("invalid file-refs specification: %q", spec)
		}
		list = append(list, map[string]interface{}{
			"file": parts[0],
			"refs": strings.Split(parts[1], ","),
		})
	}
	return marshal(map[string]interface{}{key: list}), nil
}

// Error renders {"proc.error": message}.
func Error(message string) string {
	return marshal(map[string]interface{}{KeyError: message})
}

// Warning renders {"proc.warning": message}.
func Warning(message string) string {
	return marshal(map[string]interface{}{KeyWarning: message})
}

// Info renders {"proc.info": message}.
func Info(message string) string {
	return marshal(map[string]interface{}{KeyInfo: message})
}

// Progress renders {"proc.progress": value}. The value must lie in [0, 1].
func Progress(value float64) (string, error) {
	if value < 0 || value > 1 {
		return "", fmt.Errorf("progress must be between 0 and 1, got %v", value)
	}
	return marshal(map[string]interface{}{KeyProgress: value}), nil
}

// ProgressString parses a numeric string and renders the progress annotation.
func ProgressString(value string) (string, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", fmt.Errorf("progress must be a number, got %q", value)
	}
	return Progress(f)
}

// CheckRC renders {"proc.rc": rc} after checking rc against a set of
// acceptable return codes. All arguments except the last must be integers;
// the last may instead be an error message. When rc is acceptable it is
// reported as 0. A non-zero reported rc with a message also carries
// {"proc.error": message}.
func CheckRC(rc string, args ...string) (string, error) {
	code, err := strconv.Atoi(rc)
	if err != nil {
		return "", fmt.Errorf("return code must be an integer, got %q", rc)
	}

	var acceptable []int
	var errorMsg string
	if len(args) > 0 {
		for _, a := range args[:len(args)-1] {
			n, err := strconv.Atoi(a)
			if err != nil {
				return "", fmt.Errorf("acceptable return codes must be integers, got %q", a)
			}
			acceptable = append(acceptable, n)
		}
		last := args[len(args)-1]
		if n, err := strconv.Atoi(last); err == nil {
			acceptable = append(acceptable, n)
		} else {
			errorMsg = last
		}
	}

	for _, a := range acceptable {
		if code == a {
			code = 0
			break
		}
	}

	obj := map[string]interface{}{KeyRC: code}
	if code != 0 && errorMsg != "" {
		obj[KeyError] = errorMsg
	}
	return marshal(obj), nil
}
