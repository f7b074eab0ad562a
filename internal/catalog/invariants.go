package catalog

import (
	"context"
	"fmt"
)

// InvariantReport describes how a session's stored state compares to its
// ownership invariants.
type InvariantReport struct {
	SessionID  int64
	BurstID    string
	PhotoCount int
	Owned      int
	Problems   []string
}

// OK reports whether no problems were found.
func (r InvariantReport) OK() bool { return len(r.Problems) == 0 }

// CheckInvariants verifies that photo_count matches the owned rows and that
// positions are exactly 0..n-1.
func (c *Catalog) CheckInvariants(ctx context.Context, sessionID int64) (InvariantReport, error) {
	session, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return InvariantReport{SessionID: sessionID}, err
	}
	report := InvariantReport{SessionID: session.ID, BurstID: session.BurstID, PhotoCount: session.PhotoCount}

	rows, err := c.db.QueryContext(ctx, "SELECT position FROM photos WHERE session_id = ? ORDER BY position", sessionID)
	if err != nil {
		return report, fmt.Errorf("read positions: %w", err)
	}
	defer rows.Close()

	expected := 0
	for rows.Next() {
		var position int
		if err := rows.Scan(&position); err != nil {
			return report, fmt.Errorf("scan position: %w", err)
		}
		report.Owned++
		switch {
		case position < expected:
			report.Problems = append(report.Problems, fmt.Sprintf("duplicate position %d", position))
		case position > expected:
			report.Problems = append(report.Problems, fmt.Sprintf("gap before position %d (expected %d)", position, expected))
			expected = position + 1
		default:
			expected++
		}
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	if report.Owned != report.PhotoCount {
		report.Problems = append(report.Problems,
			fmt.Sprintf("photo_count %d does not match %d owned photos", report.PhotoCount, report.Owned))
	}
	return report, nil
}
