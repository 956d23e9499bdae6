// Package artifact defines the backup artifact naming convention and the
// directory scanning built on it.
//
// Artifacts are named <prefix>_<YYYYMMDD_HHMM>[_NN].db.gz. The timestamp is
// minute-granularity to match the names produced by the original cron job;
// the optional two-digit sequence disambiguates runs inside the same minute.
// Everything that touches the backup directory - rotation, listing, verify -
// goes through this package, so a file is only ever deleted if its name
// round-trips through Parse. Safety is by pattern match, not file metadata.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// Ext is the artifact file extension. The staging copy uses StagingExt
// until compression completes.
const (
	Ext        = ".db.gz"
	StagingExt = ".db"
)

// stamp is the minute-granularity timestamp layout embedded in names.
const stamp = "20060102_1504"

// MaxSeq bounds the per-minute sequence suffix. Exceeding it is a
// deterministic failure before any file is written.
const MaxSeq = 99

// Info describes one artifact found in the backup directory.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"` // derived from the name, not mtime
	Seq       int       `json:"seq,omitempty"`
	Size      int64     `json:"size"`
}

// Age returns how old the artifact is at `now`, derived from the name.
func (i Info) Age(now time.Time) time.Duration {
	return now.Sub(i.Timestamp)
}

// Name builds the artifact filename for a timestamp. seq 0 yields the
// canonical name; seq 1-99 appends the collision suffix.
func Name(prefix string, t time.Time, seq int) string {
	if seq > 0 {
		return fmt.Sprintf("%s_%s_%02d%s", prefix, t.Format(stamp), seq, Ext)
	}
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(stamp), Ext)
}

// StagingName builds the uncompressed staging filename for a timestamp.
func StagingName(prefix string, t time.Time, seq int) string {
	if seq > 0 {
		return fmt.Sprintf("%s_%s_%02d%s", prefix, t.Format(stamp), seq, StagingExt)
	}
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(stamp), StagingExt)
}

// Pattern returns the regexp matching artifact names for a prefix.
// Submatch 1 is the timestamp, submatch 2 the optional sequence.
func Pattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(\d{8}_\d{4})(?:_(\d{2}))?\.db\.gz$`)
}

// Parse extracts the timestamp and sequence from an artifact filename.
// Returns false for anything that does not match the naming convention.
func Parse(prefix, name string) (Info, bool) {
	m := Pattern(prefix).FindStringSubmatch(name)
	if m == nil {
		return Info{}, false
	}
	t, err := time.ParseInLocation(stamp, m[1], time.Local)
	if err != nil {
		// Matches the shape but encodes an impossible date (e.g. month 13).
		return Info{}, false
	}
	info := Info{Name: name, Timestamp: t}
	if m[2] != "" {
		// Two digits, regexp-guaranteed; ignore the impossible error.
		fmt.Sscanf(m[2], "%d", &info.Seq)
	}
	return info, true
}

// Scan lists the artifacts in dir that match the naming convention,
// oldest first. Non-matching files are ignored, never reported.
func Scan(dir, prefix string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir %s: %w", dir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ok := Parse(prefix, e.Name())
		if !ok {
			continue
		}
		info.Path = filepath.Join(dir, e.Name())
		if fi, err := e.Info(); err == nil {
			info.Size = fi.Size()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(a, b int) bool {
		if infos[a].Timestamp.Equal(infos[b].Timestamp) {
			return infos[a].Seq < infos[b].Seq
		}
		return infos[a].Timestamp.Before(infos[b].Timestamp)
	})
	return infos, nil
}

// Plan picks the first free name for a backup taken at `t`. It probes both
// the final and the staging name so a leftover staging copy from a failed
// compression is never overwritten. Returns the chosen sequence number.
// The canonical name is the first backup of its minute, so collision
// suffixes start at 02.
func Plan(dir, prefix string, t time.Time) (final, staging string, seq int, err error) {
	for s := 0; s <= MaxSeq; s++ {
		if s == 1 {
			continue
		}
		f := filepath.Join(dir, Name(prefix, t, s))
		g := filepath.Join(dir, StagingName(prefix, t, s))
		if exists(f) || exists(g) {
			continue
		}
		return f, g, s, nil
	}
	return "", "", 0, fmt.Errorf("no free artifact name for %s_%s: sequence exhausted", prefix, t.Format(stamp))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
