package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// CustomActionDate is the asset custom field holding the action date (YYYY-MM-DD).
	CustomActionDate = "field_8"
	// CustomName is the asset custom field holding the clip name.
	CustomName = "field_4"

	// CapturedLayout is the catalog capture timestamp format.
	CapturedLayout = "2006-01-02T15:04:05Z"
	// DateLayout is the catalog date format.
	DateLayout = "2006-01-02"
)

// Envelope is one catalog search result.
type Envelope struct {
	ClipID FlexInt
	Data   Data
	Extra  Extra
}

func (e *Envelope) fields() []field {
	return []field{
		{key: "clip_id", ptr: &e.ClipID},
		{key: "data", ptr: &e.Data},
	}
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, e.fields())
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return encodeObject(e.fields(), e.Extra)
}

// Data is the descriptive body of a catalog record.
type Data struct {
	DisplayName string
	Video       []Video
	Metadata    Metadata
	Asset       Asset
	Extra       Extra
}

func (d *Data) fields() []field {
	return []field{
		{key: "display_name", ptr: &d.DisplayName, omitEmpty: true},
		{key: "video", ptr: &d.Video},
		{key: "metadata", ptr: &d.Metadata},
		{key: "asset", ptr: &d.Asset},
	}
}

func (d *Data) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, d.fields())
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

func (d Data) MarshalJSON() ([]byte, error) {
	return encodeObject(d.fields(), d.Extra)
}

// Video describes one video track and its backing file.
type Video struct {
	TimecodeStart    string
	TimecodeDuration string
	File             VideoFile
	Extra            Extra
}

func (v *Video) fields() []field {
	return []field{
		{key: "timecode_start", ptr: &v.TimecodeStart},
		{key: "timecode_duration", ptr: &v.TimecodeDuration},
		{key: "file", ptr: &v.File},
	}
}

func (v *Video) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, v.fields())
	if err != nil {
		return err
	}
	v.Extra = extra
	return nil
}

func (v Video) MarshalJSON() ([]byte, error) {
	return encodeObject(v.fields(), v.Extra)
}

// VideoFile lists the on-disk locations of a video.
type VideoFile struct {
	StatusText    string
	File          FileInfo
	Locations     []Location
	GoneLocations []Location
	Extra         Extra
}

func (f *VideoFile) fields() []field {
	return []field{
		{key: "status_text", ptr: &f.StatusText},
		{key: "file", ptr: &f.File},
		{key: "locations", ptr: &f.Locations, omitEmpty: true},
		{key: "gone_locations", ptr: &f.GoneLocations, omitEmpty: true},
	}
}

func (f *VideoFile) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, f.fields())
	if err != nil {
		return err
	}
	f.Extra = extra
	return nil
}

func (f VideoFile) MarshalJSON() ([]byte, error) {
	return encodeObject(f.fields(), f.Extra)
}

// FileInfo carries the catalog's view of the file.
type FileInfo struct {
	Filesize FlexInt
	Extra    Extra
}

func (f *FileInfo) fields() []field {
	return []field{{key: "filesize", ptr: &f.Filesize}}
}

func (f *FileInfo) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, f.fields())
	if err != nil {
		return err
	}
	f.Extra = extra
	return nil
}

func (f FileInfo) MarshalJSON() ([]byte, error) {
	return encodeObject(f.fields(), f.Extra)
}

// Location is a path relative to the media root.
type Location struct {
	UserPath string
	Extra    Extra
}

func (l *Location) fields() []field {
	return []field{{key: "userpath", ptr: &l.UserPath}}
}

func (l *Location) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, l.fields())
	if err != nil {
		return err
	}
	l.Extra = extra
	return nil
}

func (l Location) MarshalJSON() ([]byte, error) {
	return encodeObject(l.fields(), l.Extra)
}

// Metadata holds capture information.
type Metadata struct {
	Captured string
	ClipName string
	Extra    Extra
}

func (m *Metadata) fields() []field {
	return []field{
		{key: "captured", ptr: &m.Captured},
		{key: "clip_name", ptr: &m.ClipName},
	}
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, m.fields())
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return encodeObject(m.fields(), m.Extra)
}

// Asset holds operator-maintained fields.
type Asset struct {
	Custom  map[string]any
	Comment json.RawMessage
	Extra   Extra
}

func (a *Asset) fields() []field {
	return []field{
		{key: "custom", ptr: &a.Custom},
		{key: "comment", ptr: &a.Comment, omitEmpty: true},
	}
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	extra, err := decodeObject(data, a.fields())
	if err != nil {
		return err
	}
	a.Extra = extra
	return nil
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return encodeObject(a.fields(), a.Extra)
}

// Parse decodes a catalog record.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode catalog record: %w", err)
	}
	return &env, nil
}

// Marshal encodes the envelope compactly for storage.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// SerializedSize returns the byte length of the indented, sorted encoding the
// catalog uses when the record is stored as a text column.
func (e *Envelope) SerializedSize() (int, error) {
	compact, err := e.Marshal()
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "    "); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

// PrimaryVideo returns the first video track.
func (e *Envelope) PrimaryVideo() (*Video, bool) {
	if e == nil || len(e.Data.Video) == 0 {
		return nil, false
	}
	return &e.Data.Video[0], true
}

// Locations returns the primary video's locations, falling back to the gone
// locations when the catalog reports none.
func (e *Envelope) Locations() []Location {
	video, ok := e.PrimaryVideo()
	if !ok {
		return nil
	}
	if len(video.File.Locations) > 0 {
		return video.File.Locations
	}
	return video.File.GoneLocations
}

// CandidatePaths returns the user paths of Locations.
func (e *Envelope) CandidatePaths() []string {
	locations := e.Locations()
	paths := make([]string, 0, len(locations))
	for _, loc := range locations {
		if p := strings.TrimSpace(loc.UserPath); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// SetLocations replaces the primary video's locations.
func (e *Envelope) SetLocations(locations []Location) {
	video, ok := e.PrimaryVideo()
	if !ok {
		return
	}
	video.File.Locations = locations
}

// FileSize returns the catalog-reported size of the primary file.
func (e *Envelope) FileSize() int64 {
	video, ok := e.PrimaryVideo()
	if !ok {
		return 0
	}
	return int64(video.File.File.Filesize)
}

// StatusText returns the primary file's status text.
func (e *Envelope) StatusText() string {
	video, ok := e.PrimaryVideo()
	if !ok {
		return ""
	}
	return video.File.StatusText
}

// IsOffline reports whether the catalog marks the file offline.
func (e *Envelope) IsOffline() bool {
	return strings.Contains(e.StatusText(), "Offline")
}

// DurationSeconds parses the primary video's timecode duration.
func (e *Envelope) DurationSeconds() float64 {
	video, ok := e.PrimaryVideo()
	if !ok {
		return 0
	}
	return ParseTimecodeDuration(video.TimecodeDuration)
}

// Timecode returns the start timecode without its trailing frame-rate field.
func (e *Envelope) Timecode() string {
	video, ok := e.PrimaryVideo()
	if !ok {
		return ""
	}
	parts := strings.Split(strings.TrimSpace(video.TimecodeStart), ":")
	if len(parts) <= 1 {
		return video.TimecodeStart
	}
	return strings.Join(parts[:len(parts)-1], ":")
}

// CapturedAt parses the capture timestamp.
func (e *Envelope) CapturedAt() (time.Time, error) {
	return time.Parse(CapturedLayout, strings.TrimSpace(e.Data.Metadata.Captured))
}

// CustomString returns a custom asset field when it is a non-empty string.
func (e *Envelope) CustomString(key string) (string, bool) {
	if e.Data.Asset.Custom == nil {
		return "", false
	}
	value, ok := e.Data.Asset.Custom[key]
	if !ok || value == nil {
		return "", false
	}
	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", false
	}
	return str, true
}

// SetCustom sets a custom asset field.
func (e *Envelope) SetCustom(key string, value any) {
	if e.Data.Asset.Custom == nil {
		e.Data.Asset.Custom = make(map[string]any)
	}
	e.Data.Asset.Custom[key] = value
}

// ParseTimecodeDuration converts "hh:mm:ss:ff:fps ..." into seconds. The fps
// field may be a fraction such as 30000/1001. Malformed input yields 0.
func ParseTimecodeDuration(value string) float64 {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 5 {
		return 0
	}
	fps := parseRate(strings.Fields(parts[4]))
	if fps <= 0 {
		return 0
	}
	var units [4]int
	for i := range units {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return 0
		}
		units[i] = n
	}
	return float64(units[0]*3600+units[1]*60+units[2]) + float64(units[3])/fps
}

func parseRate(fields []string) float64 {
	if len(fields) == 0 {
		return 0
	}
	text := fields[0]
	if num, den, ok := strings.Cut(text, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	rate, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return rate
}
