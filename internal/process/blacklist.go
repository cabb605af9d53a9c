package process

import "strings"

// protected lists executables that must never be terminated. Matching is
// exact and case-insensitive; a name merely containing one of these is fine.
var protected = map[string]struct{}{
	// Windows
	"csrss.exe":    {},
	"winlogon.exe": {},
	"lsass.exe":    {},
	"services.exe": {},
	"smss.exe":     {},
	"wininit.exe":  {},
	"svchost.exe":  {},
	"dwm.exe":      {},
	"explorer.exe": {},
	"system":       {},
	"registry":     {},

	// Linux session and system plumbing
	"init":            {},
	"systemd":         {},
	"systemd-logind":  {},
	"kthreadd":        {},
	"dbus-daemon":     {},
	"dbus-broker":     {},
	"polkitd":         {},
	"xorg":            {},
	"xwayland":        {},
	"gnome-shell":     {},
	"kwin_wayland":    {},
	"kwin_x11":        {},
	"plasmashell":     {},
	"gdm":             {},
	"sddm":            {},
	"pipewire":        {},
	"wireplumber":     {},
	"pulseaudio":      {},
	"bluetoothd":      {},
}

// IsBlacklisted reports whether name is a protected executable.
func IsBlacklisted(name string) bool {
	_, ok := protected[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
