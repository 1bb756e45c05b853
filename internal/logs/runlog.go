package logs

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"arcmigrate/internal/logging"
)

// Latest returns the newest run log in dir, or "" when none exists. Run log
// names embed a UTC timestamp, so lexical order is chronological.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, logging.RunLogPattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

var leadingKeys = map[string]bool{"ts": true, "level": true, "msg": true}

// Format renders one JSON record as "HH:MM:SS LEVEL message key=value ...".
// Lines that are not JSON objects are returned unchanged.
func Format(line string) string {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return line
	}

	var b strings.Builder
	if ts, ok := record["ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			ts = parsed.Local().Format(time.TimeOnly)
		}
		b.WriteString(ts)
		b.WriteByte(' ')
	}
	level, _ := record["level"].(string)
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(level))
	msg, _ := record["msg"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(record))
	for key := range record {
		if !leadingKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, formatValue(record[key]))
	}
	return b.String()
}

// MatchesItem reports whether the record carries item_id == id.
func MatchesItem(line string, id int64) bool {
	var record struct {
		ItemID json.Number `json:"item_id"`
	}
	if err := json.Unmarshal([]byte(line), &record); err != nil || record.ItemID == "" {
		return false
	}
	value, err := record.ItemID.Int64()
	return err == nil && value == id
}

func formatValue(v any) string {
	switch value := v.(type) {
	case string:
		if value == "" || strings.ContainsAny(value, " \t\"=") {
			return strconv.Quote(value)
		}
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	}
}
