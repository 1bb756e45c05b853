package migration

import (
	"strings"
	"time"

	"arcmigrate/internal/config"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services/scan"
)

// sceneTimed marks the re-indexed clip as a timed scene.
const sceneTimed = "timed"

// BuildScanRequest assembles the re-index submission for a placed item,
// filling required custom fields the operator left empty.
func BuildScanRequest(cfg *config.Config, env *payload.Envelope, placement pathfix.Placement) scan.Request {
	custom := make(map[string]any, len(env.Data.Asset.Custom)+2)
	for key, value := range env.Data.Asset.Custom {
		custom[key] = value
	}

	if !validActionDate(env) {
		custom[payload.CustomActionDate] = capturedDate(env.Data.Metadata.Captured)
	}
	clipName := clipName(env)
	if _, ok := env.CustomString(payload.CustomName); !ok {
		custom[payload.CustomName] = clipName
	}

	return scan.Request{
		CreateProxy: "true",
		Files:       []string{placement.ScanFile()},
		FullScan:    "false",
		MediaSpace:  cfg.Catalog.MediaSpace,
		User:        cfg.Scan.User,
		Metadata: scan.Metadata{
			Custom:   custom,
			Comments: env.Data.Asset.Comment,
			ClipName: clipName,
			Scene:    sceneTimed,
		},
	}
}

func validActionDate(env *payload.Envelope) bool {
	value, ok := env.CustomString(payload.CustomActionDate)
	if !ok {
		return false
	}
	_, err := time.Parse(payload.DateLayout, strings.TrimSpace(value))
	return err == nil
}

func capturedDate(captured string) string {
	captured = strings.TrimSpace(captured)
	if day, _, ok := strings.Cut(captured, "T"); ok {
		return day
	}
	return captured
}

func clipName(env *payload.Envelope) string {
	if name := strings.TrimSpace(env.Data.Metadata.ClipName); name != "" {
		return name
	}
	return strings.TrimSpace(env.Data.DisplayName)
}
