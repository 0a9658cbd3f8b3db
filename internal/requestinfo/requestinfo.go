//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types and helpers that collect per-request metadata
//  (request id, client IP, user-agent fingerprint, and arrival time).
//  These structs are inert, so they are safe to log.
//
//  Dependencies
//  • github.com/avct/uasurfer   (UA parsing)
//  • github.com/google/uuid     (request ids)
//

package requestinfo

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/google/uuid"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// UA holds the parsed user-agent properties written to the access log.
type UA struct {
	Browser string // "Chrome", "Firefox", "Safari", etc.
	Version string // "124.0.6367"
	OS      string // "MacOSX", "Windows", "Android", "iOS", etc.
	Device  string // "Desktop", "Phone", "Tablet", "TV", ...
	IsBot   bool
}

// RequestInfo is stored in the request context by Enrich.
type RequestInfo struct {
	ID        uuid.UUID
	IP        net.IP
	UA        UA
	Timestamp time.Time
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich.
// It returns nil if the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// parseUA converts a raw header into our UA struct using uasurfer.
func parseUA(raw string) UA {
	u := uasurfer.Parse(raw)
	return UA{
		Browser: strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version: trimVersion(u.Browser.Version),
		OS:      strings.TrimPrefix(u.OS.Name.String(), "OS"),
		Device:  deviceTypeToString(u.DeviceType),
		IsBot:   u.IsBot(),
	}
}

// trimVersion builds "major.minor.patch" and removes trailing ".0".
// An all-zero version becomes "".
func trimVersion(v uasurfer.Version) string {
	out := strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor)) + "." + strconv.Itoa(int(v.Patch))
	for strings.HasSuffix(out, ".0") {
		out = strings.TrimSuffix(out, ".0")
	}
	if out == "0" {
		return ""
	}
	return out
}

// deviceTypeToString maps uasurfer.DeviceType to a user-friendly string.
func deviceTypeToString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}
