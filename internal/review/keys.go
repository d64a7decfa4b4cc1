package review

import (
	"strings"
)

// KeyDelimiter separates the components of composite keys. It is reserved:
// no key component may contain it, so parsing is the exact inverse of
// composition.
const KeyDelimiter = ":"

const (
	// summaryKeyPrefix tags summary keys so they can be told apart from
	// step keys without a side lookup.
	summaryKeyPrefix = "summary"

	// stepKeyPrefix tags step keys.
	stepKeyPrefix = "step"
)

// validateKeyComponents checks that every component is non-empty and free of
// the reserved delimiter.
func validateKeyComponents(components ...string) error {
	for _, c := range components {
		if c == "" {
			return NewConstraintError("empty key component")
		}
		if strings.Contains(c, KeyDelimiter) {
			return NewConstraintError("key component %q contains "+
				"reserved delimiter %q", c, KeyDelimiter)
		}
	}

	return nil
}

// SummaryKey derives the deterministic key of the ReviewSummary for the
// given (unit, submission, reviewee) triple. It fails with a ConstraintError
// if any component is empty or contains the reserved delimiter.
func SummaryKey(unitID, submissionKey, revieweeKey string) (string, error) {
	err := validateKeyComponents(unitID, submissionKey, revieweeKey)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		summaryKeyPrefix, unitID, submissionKey, revieweeKey,
	}, KeyDelimiter), nil
}

// StepKey derives the deterministic key of the ReviewStep for the given
// (unit, submission, reviewee, reviewer) tuple. Re-deriving the key for the
// same tuple always yields the same value, which is what makes step creation
// idempotent.
func StepKey(unitID, submissionKey, revieweeKey,
	reviewerKey string) (string, error) {

	err := validateKeyComponents(
		unitID, submissionKey, revieweeKey, reviewerKey,
	)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		stepKeyPrefix, unitID, submissionKey, revieweeKey, reviewerKey,
	}, KeyDelimiter), nil
}

// ParsedSummaryKey holds the components recovered from a summary key.
type ParsedSummaryKey struct {
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
}

// ParseSummaryKey recovers the original components from a summary key. It is
// the exact inverse of SummaryKey.
func ParseSummaryKey(key string) (ParsedSummaryKey, error) {
	parts := strings.Split(key, KeyDelimiter)
	if len(parts) != 4 || parts[0] != summaryKeyPrefix {
		return ParsedSummaryKey{}, NewConstraintError(
			"malformed summary key %q", key,
		)
	}

	parsed := ParsedSummaryKey{
		UnitID:        parts[1],
		SubmissionKey: parts[2],
		RevieweeKey:   parts[3],
	}
	err := validateKeyComponents(
		parsed.UnitID, parsed.SubmissionKey, parsed.RevieweeKey,
	)
	if err != nil {
		return ParsedSummaryKey{}, err
	}

	return parsed, nil
}

// ParsedStepKey holds the components recovered from a step key.
type ParsedStepKey struct {
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	ReviewerKey   string
}

// ParseStepKey recovers the original components from a step key. It is the
// exact inverse of StepKey.
func ParseStepKey(key string) (ParsedStepKey, error) {
	parts := strings.Split(key, KeyDelimiter)
	if len(parts) != 5 || parts[0] != stepKeyPrefix {
		return ParsedStepKey{}, NewConstraintError(
			"malformed step key %q", key,
		)
	}

	parsed := ParsedStepKey{
		UnitID:        parts[1],
		SubmissionKey: parts[2],
		RevieweeKey:   parts[3],
		ReviewerKey:   parts[4],
	}
	err := validateKeyComponents(
		parsed.UnitID, parsed.SubmissionKey, parsed.RevieweeKey,
		parsed.ReviewerKey,
	)
	if err != nil {
		return ParsedStepKey{}, err
	}

	return parsed, nil
}

// SummaryKeyForStep derives the owning summary key from a parsed step key.
func (p ParsedStepKey) SummaryKeyForStep() (string, error) {
	return SummaryKey(p.UnitID, p.SubmissionKey, p.RevieweeKey)
}
