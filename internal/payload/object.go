package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Extra holds keys that are not modelled by a struct. They are written back
// unchanged when the struct is marshalled.
type Extra map[string]json.RawMessage

type field struct {
	key       string
	ptr       any
	omitEmpty bool
}

func decodeObject(data []byte, fields []field) (Extra, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, f := range fields {
		value, ok := raw[f.key]
		if !ok {
			continue
		}
		delete(raw, f.key)
		if isNull(value) {
			continue
		}
		if err := json.Unmarshal(value, f.ptr); err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return Extra(raw), nil
}

func encodeObject(fields []field, extra Extra) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(fields)+len(extra))
	for key, value := range extra {
		out[key] = value
	}
	for _, f := range fields {
		value := reflect.ValueOf(f.ptr).Elem()
		if f.omitEmpty && value.IsZero() {
			continue
		}
		encoded, err := marshalNoEscape(value.Interface())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		out[f.key] = encoded
	}
	return marshalNoEscape(out)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// FlexInt decodes integers the catalog sometimes sends as quoted strings.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*n = 0
		return nil
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*n = FlexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", text)
	}
	*n = FlexInt(int64(f))
	return nil
}

func (n FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(n), 10)), nil
}
