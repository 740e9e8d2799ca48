package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-records/internal/models"
	appErrors "github.com/noah-isme/student-records/pkg/errors"
	"github.com/noah-isme/student-records/pkg/export"
)

// ExportFormat names a supported roster encoding.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

var rosterHeaders = []string{"Student", "Kind", "Tuition Rate", "Course", "Enrolled At"}

type rosterReader interface {
	Roster() models.Roster
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered roster ready to be served as an attachment.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
	Format      ExportFormat
	Rows        int
}

// ExportService renders the enrollment roster into downloadable documents.
type ExportService struct {
	records   rosterReader
	renderers map[ExportFormat]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the csv, pdf and xlsx renderers.
func NewExportService(records rosterReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		records: records,
		renderers: map[ExportFormat]datasetRenderer{
			ExportFormatCSV:  export.NewCSVExporter(),
			ExportFormatPDF:  export.NewPDFExporter(),
			ExportFormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ParseExportFormat normalizes a format name. Empty defaults to csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	format := ExportFormat(strings.ToLower(strings.TrimSpace(raw)))
	if format == "" {
		return ExportFormatCSV, nil
	}
	switch format {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatXLSX:
		return format, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
}

// Roster renders every enrollment joined with its student's kind and rate.
func (s *ExportService) Roster(ctx context.Context, rawFormat string) (*ExportResult, error) {
	format, err := ParseExportFormat(rawFormat)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	dataset := rosterDataset(s.records.Roster())
	content, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("render roster failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := fmt.Sprintf("roster_%s.%s", s.now().Format("20060102_150405"), format)
	s.logger.Info("roster exported", zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		Content:     content,
		ContentType: contentType(format),
		Filename:    filename,
		Format:      format,
		Rows:        len(dataset.Rows),
	}, nil
}

func rosterDataset(roster models.Roster) export.Dataset {
	byID := make(map[string]models.Student, len(roster.Students))
	for _, st := range roster.Students {
		byID[st.ID] = st
	}
	rows := make([][]string, 0, len(roster.Enrollments))
	for _, e := range roster.Enrollments {
		kind, rate := "", ""
		if st, ok := byID[e.StudentID]; ok {
			kind = string(st.Kind)
			rate = strconv.Itoa(st.TuitionRate())
		}
		date := ""
		if !e.Date.IsZero() {
			date = e.Date.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{e.StudentLabel, kind, rate, e.CourseName, date})
	}
	return export.Dataset{Title: "Enrollment Roster", Headers: rosterHeaders, Rows: rows}
}

func contentType(format ExportFormat) string {
	switch format {
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}
