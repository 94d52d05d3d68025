package graph

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

// RiskPatternThreshold is the score a risk must exceed to become a RiskPattern link.
const RiskPatternThreshold = 0.5

// Compliance flag types.
const (
	FlagElderAbuse          = "ELDER_ABUSE"
	FlagUDAAPViolation      = "UDAAP_VIOLATION"
	FlagDisclosureViolation = "DISCLOSURE_VIOLATION"
	FlagGeneralCompliance   = "GENERAL_COMPLIANCE"
)

// ClassifyComplianceFlag maps a free-text compliance observation to a flag type by
// keyword, case-insensitively. The first matching rule wins.
func ClassifyComplianceFlag(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "elder abuse"), strings.Contains(t, "undue influence"):
		return FlagElderAbuse
	case strings.Contains(t, "udaap"):
		return FlagUDAAPViolation
	case strings.Contains(t, "disclosure"):
		return FlagDisclosureViolation
	default:
		return FlagGeneralCompliance
	}
}

// ComplianceSeverity scores a compliance observation: 0.9 for a violation, 0.7 for a
// potential issue and 0.5 otherwise.
func ComplianceSeverity(text string) float64 {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "violation"):
		return 0.9
	case strings.Contains(t, "potential"):
		return 0.7
	default:
		return 0.5
	}
}

// RiskPatternDescription is the description given to the pattern derived from a named
// risk score, e.g. "delinquency_risk" -> "High delinquency risk".
func RiskPatternDescription(riskName string) string {
	return "High " + strings.ReplaceAll(riskName, "_", " ")
}

// UpsertRiskPattern merges in into the pattern with the same (type, description), or
// creates it. A merge increments frequency and keeps the higher risk score. It returns
// the pattern id.
func (s *Store) UpsertRiskPattern(ctx context.Context, in RiskPatternInput) (string, error) {
	const op = "UpsertRiskPattern"

	if err := in.Validate(); err != nil {
		return "", err
	}
	var id string
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		id, err = upsertRiskPattern(ctx, tx, in)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpsertComplianceFlag merges in into the flag with the same (type, description), or
// creates it, keeping the higher severity. It returns the flag id.
func (s *Store) UpsertComplianceFlag(ctx context.Context, in ComplianceFlagInput) (string, error) {
	const op = "UpsertComplianceFlag"

	if err := in.Validate(); err != nil {
		return "", err
	}
	var id string
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		id, err = upsertComplianceFlag(ctx, tx, in)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func upsertRiskPattern(ctx context.Context, tx *sql.Tx, in RiskPatternInput) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `INSERT INTO risk_patterns
		(pattern_id, pattern_type, description, risk_score, frequency)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (pattern_type, description) DO UPDATE SET
			frequency = frequency + 1,
			risk_score = MAX(COALESCE(risk_score, 0), excluded.risk_score)
		RETURNING pattern_id`,
		uuid.NewString(), in.PatternType, in.Description, in.RiskScore,
	).Scan(&id)
	return id, err
}

func upsertComplianceFlag(ctx context.Context, tx *sql.Tx, in ComplianceFlagInput) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `INSERT INTO compliance_flags
		(flag_id, flag_type, description, severity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (flag_type, description) DO UPDATE SET
			severity = MAX(COALESCE(severity, 0), excluded.severity)
		RETURNING flag_id`,
		uuid.NewString(), in.FlagType, in.Description, in.Severity,
	).Scan(&id)
	return id, err
}
