package timetable

import (
	"strings"

	"stundenplan/internal/models"
)

// Predicate selects lessons.
type Predicate func(l *models.Lesson) bool

// Filter returns the lessons matching pred in their original order.
// The input slice is not modified.
func Filter(lessons []models.Lesson, pred Predicate) []models.Lesson {
	result := make([]models.Lesson, 0)
	for i := range lessons {
		if pred(&lessons[i]) {
			result = append(result, lessons[i])
		}
	}
	return result
}

// ByDate keeps lessons whose lessonDate equals date exactly.
func ByDate(lessons []models.Lesson, date string) []models.Lesson {
	return Filter(lessons, func(l *models.Lesson) bool {
		return l.LessonDate == date
	})
}

// BySubject keeps lessons whose name contains subject, ignoring case.
func BySubject(lessons []models.Lesson, subject string) []models.Lesson {
	needle := strings.ToLower(subject)
	return Filter(lessons, func(l *models.Lesson) bool {
		return strings.Contains(strings.ToLower(l.LessonName), needle)
	})
}

// ByTeacher keeps lessons taught by the given acronym, ignoring case.
func ByTeacher(lessons []models.Lesson, acronym string) []models.Lesson {
	return Filter(lessons, func(l *models.Lesson) bool {
		return strings.EqualFold(l.TeacherAcronym, acronym)
	})
}

// ByRoom keeps lessons whose room contains room, ignoring case.
func ByRoom(lessons []models.Lesson, room string) []models.Lesson {
	needle := strings.ToLower(room)
	return Filter(lessons, func(l *models.Lesson) bool {
		return strings.Contains(strings.ToLower(l.RoomName), needle)
	})
}

// Cancelled keeps cancelled lessons.
func Cancelled(lessons []models.Lesson) []models.Lesson {
	return Filter(lessons, func(l *models.Lesson) bool {
		return l.IsCancelled()
	})
}

// Exams keeps lessons flagged as exams.
func Exams(lessons []models.Lesson) []models.Lesson {
	return Filter(lessons, func(l *models.Lesson) bool {
		return l.IsExamLesson
	})
}
