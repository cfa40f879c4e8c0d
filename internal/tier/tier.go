// AngelaMos | 2026
// tier.go

// Package tier defines subscription tiers and the article access rule.
package tier

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/wealthsupernova/supernova/internal/core"
)

type Tier string

const (
	Free    Tier = "free"
	Blaze   Tier = "blaze"
	Premium Tier = "premium"
)

// All lists the tiers in ascending rank.
var All = []Tier{Free, Blaze, Premium}

// Rank orders tiers free < blaze < premium. Unknown values rank below free.
func (t Tier) Rank() int {
	switch t {
	case Free:
		return 1
	case Blaze:
		return 2
	case Premium:
		return 3
	default:
		return 0
	}
}

func (t Tier) Valid() bool {
	return t.Rank() > 0
}

func (t Tier) String() string {
	return string(t)
}

// Title is the display form used in email copy ("Blaze").
func (t Tier) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

func Parse(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("parse tier %q: %w", s, core.ErrInvalidInput)
	}
	return t, nil
}

// ParseOrDefault parses s, treating the empty string as def.
func ParseOrDefault(s string, def Tier) (Tier, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return Parse(s)
}

// CanAccess reports whether a reader on userTier may read an article whose
// minimum tier is articleMin. Free articles are readable by everyone,
// including readers whose tier is unknown.
func CanAccess(articleMin, userTier Tier) bool {
	if articleMin == Free {
		return true
	}
	if !articleMin.Valid() {
		return false
	}
	return userTier.Rank() >= articleMin.Rank()
}

// AtLeast returns the tiers that satisfy min, in ascending rank.
func AtLeast(min Tier) []Tier {
	out := make([]Tier, 0, len(All))
	for _, t := range All {
		if t.Rank() >= min.Rank() && min.Valid() {
			out = append(out, t)
		}
	}
	return out
}

// Strings converts tiers for use as a Postgres text[] parameter.
func Strings(tiers []Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

func (t Tier) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("tier value %q: %w", string(t), core.ErrInvalidInput)
	}
	return string(t), nil
}

func (t *Tier) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*t = Free
		return nil
	default:
		return fmt.Errorf("scan tier: unsupported type %T", src)
	}

	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
