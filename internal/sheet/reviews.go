// Package sheet reads and writes the review spreadsheet used for admin export
// and bulk import. Both directions share one column layout so an exported
// file can be imported again.
package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Reviews"

// 컬럼 순서 (export/import 공통)
const (
	colID = iota
	colTitle
	colContent
	colAuthor
	colRating
	colReviewDate
	colStatus
	colViews
	colImageURL
	colVehicleType
	colBudget
	colMileage
	colPreferredColor
	colRepairHistory
	colReferenceSite
	colCreatedAt
	colUpdatedAt
	colLastViewedAt
	columnCount
)

var Headers = []string{
	"ID",
	"Title",
	"Content",
	"Author",
	"Rating",
	"Review Date",
	"Status",
	"Views",
	"Image URL",
	"Vehicle Type",
	"Budget",
	"Mileage",
	"Preferred Color",
	"Repair History",
	"Reference Site",
	"Created At",
	"Updated At",
	"Last Viewed At",
}

// WriteReviews renders reviews as an XLSX workbook into w.
func WriteReviews(w io.Writer, reviews []model.Review) error {
	f, err := BuildWorkbook(reviews)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func BuildWorkbook(reviews []model.Review) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	for col, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(SheetName, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(columnCount, 1)
		f.SetCellStyle(SheetName, "A1", last, headerStyle)
	}

	for i, r := range reviews {
		row := make([]interface{}, columnCount)
		row[colID] = r.ID
		row[colTitle] = r.Title
		row[colContent] = r.Content
		row[colAuthor] = r.Author
		row[colRating] = r.Rating
		row[colReviewDate] = r.ReviewDate
		row[colStatus] = string(r.Status)
		row[colViews] = r.Views
		row[colImageURL] = r.ImageURL
		row[colVehicleType] = r.OrderDetail.VehicleType
		row[colBudget] = r.OrderDetail.Budget
		row[colMileage] = r.OrderDetail.Mileage
		row[colPreferredColor] = r.OrderDetail.PreferredColor
		row[colRepairHistory] = r.OrderDetail.RepairHistory
		row[colReferenceSite] = r.OrderDetail.ReferenceSite
		row[colCreatedAt] = formatTime(r.CreatedAt)
		row[colUpdatedAt] = formatTime(r.UpdatedAt)
		if r.LastViewedAt != nil {
			row[colLastViewedAt] = formatTime(*r.LastViewedAt)
		} else {
			row[colLastViewedAt] = ""
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return f, nil
}

// ImportResult is what ReadReviews could use from a workbook.
type ImportResult struct {
	Reviews []model.Review
	Skipped int
}

// ReadReviews parses the first sheet. Rows missing a title or content are
// skipped and counted. The ID column is kept so re-imports are stable.
func ReadReviews(r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	result := &ImportResult{}
	for i, row := range rows {
		// 첫 행은 헤더
		if i == 0 {
			continue
		}

		// 끝쪽 빈 셀은 GetRows 결과에서 잘림
		cells := make([]string, columnCount)
		for j := 0; j < len(row) && j < columnCount; j++ {
			cells[j] = strings.TrimSpace(row[j])
		}

		if cells[colTitle] == "" || cells[colContent] == "" {
			result.Skipped++
			continue
		}

		review := model.Review{
			ID:         cells[colID],
			Title:      cells[colTitle],
			Content:    cells[colContent],
			Author:     cells[colAuthor],
			Rating:     atoi(cells[colRating]),
			ReviewDate: cells[colReviewDate],
			Status:     model.ReviewStatus(cells[colStatus]),
			Views:      int64(atoi(cells[colViews])),
			ImageURL:   cells[colImageURL],
			OrderDetail: model.OrderDetail{
				VehicleType:    cells[colVehicleType],
				Budget:         cells[colBudget],
				Mileage:        cells[colMileage],
				PreferredColor: cells[colPreferredColor],
				RepairHistory:  cells[colRepairHistory],
				ReferenceSite:  cells[colReferenceSite],
			},
			CreatedAt: parseTime(cells[colCreatedAt]),
			UpdatedAt: parseTime(cells[colUpdatedAt]),
		}
		if t := parseTime(cells[colLastViewedAt]); !t.IsZero() {
			review.LastViewedAt = &t
		}
		result.Reviews = append(result.Reviews, review)
	}

	return result, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Microsecond)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
