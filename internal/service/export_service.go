package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/asp-booking-api/internal/models"
	appErrors "github.com/noah-isme/asp-booking-api/pkg/errors"
	"github.com/noah-isme/asp-booking-api/pkg/export"
)

// ExportFormat enumerates supported attendance sheet formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type rosterLoader interface {
	GetSessionWithRoster(ctx context.Context, sessionID string) (*models.SessionRoster, error)
}

// ExportService renders attendance sheets for payroll review and sign-in
// desks.
type ExportService struct {
	rosters rosterLoader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(rosters rosterLoader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		rosters: rosters,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// ExportResult carries the rendered document.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// AttendanceSheet renders a session's roster in the requested format.
func (s *ExportService) AttendanceSheet(ctx context.Context, sessionID string, format ExportFormat) (*ExportResult, error) {
	roster, err := s.rosters.GetSessionWithRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	dataset := buildAttendanceDataset(roster)
	date := roster.Session.SessionDate.Format("2006-01-02")

	switch ExportFormat(strings.ToLower(string(format))) {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, fmt.Errorf("render attendance csv: %w", err)
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("attendance-%s-%s.csv", date, sessionID),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case ExportFormatPDF:
		title := fmt.Sprintf("Attendance Sheet %s", date)
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, fmt.Errorf("render attendance pdf: %w", err)
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("attendance-%s-%s.pdf", date, sessionID),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, expected csv or pdf")
	}
}

func buildAttendanceDataset(roster *models.SessionRoster) export.Dataset {
	headers := []string{"Child", "Status", "Check-In", "Check-Out", "Duration", "Submitted"}
	rows := make([]map[string]string, 0, len(roster.Roster))
	for _, entry := range roster.Roster {
		row := map[string]string{
			"Child":  entry.ChildName,
			"Status": string(entry.Status),
		}
		if entry.ChildName == "" {
			row["Child"] = entry.ChildID
		}
		if entry.CheckInTime != nil {
			row["Check-In"] = entry.CheckInTime.Format("15:04")
		}
		if entry.CheckOutTime != nil {
			row["Check-Out"] = entry.CheckOutTime.Format("15:04")
		}
		if duration, ok := entry.AttendanceDuration(); ok {
			row["Duration"] = formatDuration(duration)
		}
		if entry.Submitted() {
			row["Submitted"] = entry.SubmittedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", hours, minutes)
}
