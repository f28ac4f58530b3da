package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
)

type stubRosterLoader struct {
	roster *models.SessionRoster
	err    error
}

func (s *stubRosterLoader) GetSessionWithRoster(ctx context.Context, sessionID string) (*models.SessionRoster, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roster, nil
}

func exportFixtureRoster() *models.SessionRoster {
	in := time.Date(2026, 3, 2, 15, 5, 0, 0, time.UTC)
	out := in.Add(2*time.Hour + 50*time.Minute)
	session := scheduledSession("ses-1")
	session.Status = models.SessionStatusCompleted
	return &models.SessionRoster{
		Session: session,
		Roster: []models.AttendanceRosterEntry{
			{
				AttendanceRecord: models.AttendanceRecord{
					ID: "att-1", SessionID: "ses-1", ChildID: "child-1",
					Status:      models.AttendanceStatusCheckedOut,
					CheckInTime: &in, CheckOutTime: &out,
				},
				ChildName: "Ada Lovelace",
			},
			{
				AttendanceRecord: models.AttendanceRecord{
					ID: "att-2", SessionID: "ses-1", ChildID: "child-2",
					Status: models.AttendanceStatusAbsent,
				},
			},
		},
	}
}

func TestExportServiceAttendanceSheetCSV(t *testing.T) {
	svc := NewExportService(&stubRosterLoader{roster: exportFixtureRoster()}, nil)

	result, err := svc.AttendanceSheet(context.Background(), "ses-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "attendance-2026-03-02-ses-1.csv", result.FileName)

	body := string(result.Content)
	assert.True(t, strings.HasPrefix(body, "Child,Status,Check-In,Check-Out,Duration,Submitted"))
	assert.Contains(t, body, "Ada Lovelace,checked_out,15:05,17:55,2h50m,")
	// A missing child name falls back to the id.
	assert.Contains(t, body, "child-2,absent")
}

func TestExportServiceAttendanceSheetPDF(t *testing.T) {
	svc := NewExportService(&stubRosterLoader{roster: exportFixtureRoster()}, nil)

	result, err := svc.AttendanceSheet(context.Background(), "ses-1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "attendance-2026-03-02-ses-1.pdf", result.FileName)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServiceAttendanceSheetUnsupportedFormat(t *testing.T) {
	svc := NewExportService(&stubRosterLoader{roster: exportFixtureRoster()}, nil)

	_, err := svc.AttendanceSheet(context.Background(), "ses-1", "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExportServiceAttendanceSheetPropagatesLoadError(t *testing.T) {
	svc := NewExportService(&stubRosterLoader{err: appErrors.Clone(appErrors.ErrNotFound, "session not found")}, nil)

	_, err := svc.AttendanceSheet(context.Background(), "missing", ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
