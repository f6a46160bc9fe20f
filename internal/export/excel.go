// Package export renders lesson lists as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stundenplan/internal/models"
)

// SheetName is the single sheet written by WriteLessons.
const SheetName = "Lessons"

// Columns is the header row of the lessons sheet.
var Columns = []string{"Date", "Start", "End", "Subject", "Teacher", "Room", "Type", "Exam"}

// WriteLessons writes lessons as an xlsx workbook to out.
func WriteLessons(out io.Writer, lessons []models.Lesson) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(Columns), 1)
		_ = f.SetCellStyle(SheetName, "A1", endCell, style)
	}

	for i := range lessons {
		l := &lessons[i]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			l.LessonDate, l.LessonStart, l.LessonEnd, l.LessonName,
			l.TeacherAcronym, l.RoomName, l.TimetableEntryTypeShort, l.IsExamLesson,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "D", "D", 28)

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
