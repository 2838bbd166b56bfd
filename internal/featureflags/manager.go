package featureflags

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type ruleKind int

const (
	ruleOff ruleKind = iota
	ruleOn
	rulePercent
)

type rule struct {
	raw     string
	kind    ruleKind
	percent int
}

// Manager evaluates flags configured as a comma-separated key=value list,
// e.g. "realtime_notifications=on,trending_feed=25%,beta_editor=off".
// Values are on/true/1, off/false/0 or N% for a sticky per-user rollout.
// Unparseable values evaluate as off but are still reported by Raw.
type Manager struct {
	rules map[string]rule
}

func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		rules[key] = parseRule(value)
	}
	return &Manager{rules: rules}
}

func parseRule(value string) rule {
	r := rule{raw: value}
	switch value {
	case "on", "true", "1":
		r.kind = ruleOn
		return r
	case "off", "false", "0":
		return r
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || !strings.HasSuffix(value, "%") {
		return r
	}
	switch {
	case pct <= 0:
	case pct >= 100:
		r.kind = ruleOn
	default:
		r.kind = rulePercent
		r.percent = pct
	}
	return r
}

// Enabled reports whether name is on for userID. Partial rollouts never
// include anonymous callers (userID 0).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	key := normalize(name)
	r, ok := m.rules[key]
	if !ok {
		return false
	}
	switch r.kind {
	case ruleOn:
		return true
	case rulePercent:
		return userID != 0 && bucket(key, userID) < r.percent
	default:
		return false
	}
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns the configured values as written, normalized to lower case.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(key string, userID uint) int {
	h := xxhash.New()
	_, _ = h.WriteString(key)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.FormatUint(uint64(userID), 10))
	return int(h.Sum64() % 100)
}
