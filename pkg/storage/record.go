package storage

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/filter"
)

// Record is the persisted shape: the filter mapping (JSON-safe, dates as
// RFC3339 strings), the write time in epoch milliseconds, and an optional
// version tag that drives migrations.
type Record struct {
	Filters   map[string]any `json:"filters"`
	Timestamp int64          `json:"timestamp"`
	Version   string         `json:"version,omitempty"`
}

// NewRecord builds a record from live filter values. version may be empty.
func NewRecord(vals filter.Values, version string) Record {
	return Record{
		Filters:   codec.Sanitize(vals),
		Timestamp: time.Now().UnixMilli(),
		Version:   version,
	}
}

// Values restores typed filter values from the record. schema may be nil.
func (r Record) Values(schema *filter.Schema) filter.Values {
	return codec.Restore(r.Filters, schema)
}

// Encode serializes the record for an adapter.
func (r Record) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", sifterrors.FromError(err, "E041")
	}
	return string(raw), nil
}

// DecodeRecord parses a value previously produced by Encode. A corrupt
// record is an E043; callers treat it as "nothing persisted".
func DecodeRecord(raw string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Record{}, sifterrors.FromError(err, "E043")
	}
	return r, nil
}

// Migration upgrades records written by an older release. FromVersion is
// the version the rule migrates from; Apply receives the stored filter
// mapping and returns the upgraded one.
type Migration struct {
	FromVersion string
	Apply       func(filters map[string]any) map[string]any
}

// Migrate applies every rule between the record's version and target,
// in descending FromVersion order, then stamps the record with target.
// Rules at or above target are ignored. Records already at or past
// target come back unchanged.
func Migrate(rec Record, target string, migrations []Migration) Record {
	if target == "" || len(migrations) == 0 {
		rec.Version = target
		return rec
	}
	if CompareVersions(rec.Version, target) >= 0 {
		return rec
	}

	rules := make([]Migration, len(migrations))
	copy(rules, migrations)
	sort.Slice(rules, func(i, j int) bool {
		return CompareVersions(rules[i].FromVersion, rules[j].FromVersion) > 0
	})

	for _, rule := range rules {
		if CompareVersions(rule.FromVersion, target) >= 0 {
			continue
		}
		if CompareVersions(rule.FromVersion, rec.Version) < 0 {
			break
		}
		if rule.Apply != nil {
			rec.Filters = rule.Apply(rec.Filters)
		}
	}

	rec.Version = target
	return rec
}

// CompareVersions orders semver-like strings ("1.2.0" < "1.10"). Numeric
// segments compare numerically, anything else lexically; missing segments
// count as zero. An empty version orders before everything.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		sa, sb := "0", "0"
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		if sa == sb {
			continue
		}

		na, aErr := strconv.Atoi(sa)
		nb, bErr := strconv.Atoi(sb)
		if aErr == nil && bErr == nil {
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if sa == "" {
			return -1
		}
		if sb == "" {
			return 1
		}
		if sa < sb {
			return -1
		}
		return 1
	}
	return 0
}
