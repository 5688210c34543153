// Package featureflags evaluates runtime feature toggles. Flags come from
// the FEATURE_FLAGS environment value as a comma-separated key=value list,
// layered over built-in defaults, e.g. "calls=off,follow_suggestions=25%".
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flag names for the optional surfaces the server can toggle.
const (
	FollowSuggestions = "follow_suggestions"
	Calls             = "calls"
	ScreenShare       = "screen_share"
)

// defaults apply when the environment does not mention a flag. Everything
// ships enabled; the env exists to turn things off or stage rollouts.
var defaults = map[string]string{
	FollowSuggestions: "on",
	Calls:             "on",
	ScreenShare:       "on",
}

// Manager holds the merged flag table. The zero value and nil are both
// safe; every flag evaluates to its default.
type Manager struct {
	flags map[string]string
}

// NewManager parses the raw env value and merges it over the defaults.
// Malformed entries are skipped rather than rejected so one typo cannot
// take the server down.
func NewManager(raw string) *Manager {
	flags := make(map[string]string, len(defaults))
	for name, value := range defaults {
		flags[name] = value
	}

	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name = normalize(name)
		value = normalize(value)
		if name == "" || value == "" {
			continue
		}
		flags[name] = value
	}

	return &Manager{flags: flags}
}

// Enabled evaluates one flag for one user. Values are "on"/"true"/"1",
// "off"/"false"/"0", or "N%" for a deterministic per-user rollout. Unknown
// flags and unparseable values are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	name = normalize(name)

	value := defaults[name]
	if m != nil {
		if v, ok := m.flags[name]; ok {
			value = v
		}
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0", "":
		return false
	}

	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || !strings.HasSuffix(value, "%") {
		return false
	}
	switch {
	case pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		// Anonymous callers never land in a partial rollout.
		return false
	}
	return bucket(name, userID) < pct
}

// Snapshot evaluates every known flag for one user, for the /api/features
// endpoint.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	names := make(map[string]struct{}, len(defaults))
	for name := range defaults {
		names[name] = struct{}{}
	}
	if m != nil {
		for name := range m.flags {
			names[name] = struct{}{}
		}
	}

	out := make(map[string]bool, len(names))
	for name := range names {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bucket maps (flag, user) to a stable 0-99 value so a user stays on the
// same side of a percentage rollout across requests and restarts.
func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
