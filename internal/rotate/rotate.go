// Package rotate enforces the retention policy over the backup directory.
//
// An artifact becomes eligible for deletion when its name-derived age
// strictly exceeds the retention window. Files that do not match the
// artifact naming convention are invisible to rotation regardless of age -
// safety is by pattern match, not metadata. Ages come from the timestamp
// encoded in the name, never from mtime, so behaviour is deterministic
// under an injected clock and unaffected by mtime-mangling copies.
package rotate

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dlarsson-se/walback/internal/artifact"
)

// Options configures rotation scope and safety checks.
type Options struct {
	Retention time.Duration // delete artifacts strictly older than this
	Now       time.Time     // reference time for age derivation
	Exclude   string        // artifact filename never deleted (the one just produced)
	DryRun    bool          // preview without deleting
}

// Result reports what was (or would be) deleted. Per-file deletion errors
// are collected rather than aborting: by the time rotation runs the
// valuable artifact already exists, so a failed delete must not mask a
// successful backup.
type Result struct {
	Deleted int      `json:"deleted"`
	Paths   []string `json:"paths,omitempty"`
	Errs    []error  `json:"-"`
}

// Run deletes artifacts in dir older than the retention window. With
// DryRun it only reports. Non-matching files are never considered.
func Run(w io.Writer, dir, prefix string, opts Options) (Result, error) {
	var result Result

	infos, err := artifact.Scan(dir, prefix)
	if err != nil {
		return result, err
	}

	for _, info := range infos {
		if info.Name == opts.Exclude {
			continue
		}
		if info.Age(opts.Now) <= opts.Retention {
			continue
		}

		if opts.DryRun {
			fmt.Fprintf(w, "Would delete: %s (age %s)\n", info.Name, ageString(info.Age(opts.Now)))
			result.Paths = append(result.Paths, info.Path)
			result.Deleted++
			continue
		}

		if err := os.Remove(info.Path); err != nil {
			result.Errs = append(result.Errs, fmt.Errorf("delete %s: %w", info.Name, err))
			continue
		}
		result.Paths = append(result.Paths, info.Path)
		result.Deleted++
	}

	return result, nil
}

// ageString renders an age in whole days for log output.
func ageString(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days < 1 {
		return "<1d"
	}
	return fmt.Sprintf("%dd", days)
}
