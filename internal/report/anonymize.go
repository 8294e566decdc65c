package report

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"spo-preflight/internal/models"
)

// hashLength is the number of hex characters kept per hashed segment
const hashLength = 16

// NewSalt returns 16 random bytes as a 32 character hex string
func NewSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Anonymizer replaces every path segment with a salted hash. The same salt
// and segment always give the same hash, so the structure of the tree stays
// visible while the names do not.
type Anonymizer struct {
	salt string
}

// NewAnonymizer creates an Anonymizer bound to salt
func NewAnonymizer(salt string) *Anonymizer {
	return &Anonymizer{salt: salt}
}

// Salt returns the salt needed to reproduce the hashes
func (a *Anonymizer) Salt() string { return a.salt }

// Segment hashes a single path segment. Empty segments stay empty.
func (a *Anonymizer) Segment(part string) string {
	if part == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(a.salt + part))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// Path hashes each segment of an OS path
func (a *Anonymizer) Path(p string) string {
	return a.split(p, string(os.PathSeparator))
}

func (a *Anonymizer) split(p, sep string) string {
	parts := strings.Split(p, sep)
	for i, part := range parts {
		parts[i] = a.Segment(part)
	}
	return strings.Join(parts, sep)
}

// Issue returns a copy of issue with the path, the current value and every
// name-derived field hashed.
// destBase is the configured destination base URL; the part of the
// destination path after it is hashed segment by segment.
func (a *Anonymizer) Issue(issue models.Issue, destBase string) models.Issue {
	out := issue
	out.FullPath = a.Path(issue.FullPath)

	switch issue.Kind {
	case models.KindInvalidChars:
		// keep the offending characters visible, hash only the name
		if idx := strings.LastIndex(issue.CurrentValue, " (chars: "); idx >= 0 {
			out.CurrentValue = a.Segment(issue.CurrentValue[:idx]) + issue.CurrentValue[idx:]
		} else {
			out.CurrentValue = a.Path(issue.CurrentValue)
		}
	case models.KindCaseDuplicate:
		out.CurrentValue = a.collisionValue(issue.CurrentValue)
	default:
		out.CurrentValue = a.Path(issue.CurrentValue)
	}

	if issue.Kind.NameDerivedFix() {
		out.SuggestedFix = a.fix(issue)
	}

	if issue.DestinationPath != "" {
		out.DestinationPath = a.destination(issue.DestinationPath, destBase)
	}
	return out
}

func (a *Anonymizer) collisionValue(value string) string {
	idx := strings.LastIndex(value, " (collides with: ")
	if idx < 0 || !strings.HasSuffix(value, ")") {
		return a.Segment(value)
	}
	others := strings.Split(value[idx+len(" (collides with: "):len(value)-1], ", ")
	for i, o := range others {
		others[i] = a.Segment(o)
	}
	return fmt.Sprintf("%s (collides with: %s)", a.Segment(value[:idx]), strings.Join(others, ", "))
}

func (a *Anonymizer) fix(issue models.Issue) string {
	if issue.Kind == models.KindCaseDuplicate {
		const prefix = "Rename to make unique: "
		if rest, ok := strings.CutPrefix(issue.SuggestedFix, prefix); ok {
			if stem, _, ok := strings.Cut(rest, "_1, "); ok {
				h := a.Segment(stem)
				return fmt.Sprintf("%s%s_1, %s_2, etc.", prefix, h, h)
			}
		}
	}
	return a.Segment(issue.SuggestedFix)
}

func (a *Anonymizer) destination(dest, base string) string {
	if base != "" {
		if rest, ok := strings.CutPrefix(dest, base+"/"); ok {
			return base + "/" + a.split(rest, "/")
		}
	}
	return a.split(dest, "/")
}
