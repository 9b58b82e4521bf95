// Package featureflags evaluates per-user feature switches from config.
package featureflags

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Flags consulted by the API.
const (
	// RecommendedFeed gates GET /api/posts/recommended.
	RecommendedFeed = "recommended_feed"
	// Realtime gates the notification websocket.
	Realtime = "realtime"
)

// Known lists every flag the API checks. Snapshots always include them.
var Known = []string{RecommendedFeed, Realtime}

// rollout is the share of users, 0 to 100, that see a flag.
type rollout int

const (
	off rollout = 0
	on  rollout = 100
)

// Manager holds flags parsed from a list such as
// "recommended_feed=on,realtime=25%". A nil Manager enables everything.
type Manager struct {
	flags map[string]rollout
	raw   map[string]string
}

// Parse reads a comma-separated name=value list. Values are on/true/1,
// off/false/0 or a percentage. Malformed entries are skipped and reported
// together in the returned error; the Manager is usable either way.
func Parse(raw string) (*Manager, error) {
	m := &Manager{flags: map[string]rollout{}, raw: map[string]string{}}
	var errs []error

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			errs = append(errs, fmt.Errorf("flag %q: want name=value", entry))
			continue
		}
		r, err := parseValue(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("flag %s: %w", name, err))
			continue
		}
		m.flags[name] = r
		m.raw[name] = value
	}
	return m, errors.Join(errs...)
}

// NewManager is Parse without the error.
func NewManager(raw string) *Manager {
	m, _ := Parse(raw)
	return m
}

func parseValue(v string) (rollout, error) {
	switch v {
	case "on", "true", "1":
		return on, nil
	case "off", "false", "0":
		return off, nil
	}
	pct, ok := strings.CutSuffix(v, "%")
	if !ok {
		return off, fmt.Errorf("unknown value %q", v)
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return off, fmt.Errorf("bad percentage %q", v)
	}
	return rollout(min(max(n, 0), 100)), nil
}

// Enabled reports whether name is on for userID. Unconfigured flags are off.
// Partial rollouts are sticky per user and never include anonymous callers.
func (m *Manager) Enabled(name string, userID uuid.UUID) bool {
	if m == nil {
		return true
	}
	r, ok := m.flags[normalize(name)]
	switch {
	case !ok || r == off:
		return false
	case r == on:
		return true
	case userID == uuid.Nil:
		return false
	}
	return bucket(name, userID) < int(r)
}

// Raw returns the configured values, normalized.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for k, v := range m.raw {
		out[k] = v
	}
	return out
}

// Names returns the known and configured flag names, sorted.
func (m *Manager) Names() []string {
	seen := map[string]bool{}
	for _, n := range Known {
		seen[n] = true
	}
	if m != nil {
		for n := range m.flags {
			seen[n] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot evaluates every name in Names for userID.
func (m *Manager) Snapshot(userID uuid.UUID) map[string]bool {
	names := m.Names()
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = m.Enabled(n, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name)))
	_, _ = h.Write(userID[:])
	return int(h.Sum32() % 100)
}
