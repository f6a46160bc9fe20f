package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// EntryTypeCancel marks a cancelled lesson in timetableEntryTypeShort.
const EntryTypeCancel = "cancel"

// Lesson is a single timetable entry as delivered by the intranet.
// Only the fields below are interpreted; the original object is kept and
// written back unchanged when the lesson is encoded again.
type Lesson struct {
	LessonDate              string `json:"lessonDate"`
	LessonStart             string `json:"lessonStart"`
	LessonEnd               string `json:"lessonEnd"`
	LessonName              string `json:"lessonName"`
	TeacherAcronym          string `json:"teacherAcronym"`
	RoomName                string `json:"roomName"`
	TimetableEntryTypeShort string `json:"timetableEntryTypeShort"`
	IsExamLesson            bool   `json:"isExamLesson"`

	raw json.RawMessage
}

// IsCancelled reports whether the lesson was cancelled.
func (l *Lesson) IsCancelled() bool {
	return l.TimetableEntryTypeShort == EntryTypeCancel
}

// UnmarshalJSON decodes the consumed fields leniently: null, missing or
// non-string values become empty strings instead of failing the whole payload.
func (l *Lesson) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*l = Lesson{
		LessonDate:              stringField(fields, "lessonDate"),
		LessonStart:             stringField(fields, "lessonStart"),
		LessonEnd:               stringField(fields, "lessonEnd"),
		LessonName:              stringField(fields, "lessonName"),
		TeacherAcronym:          stringField(fields, "teacherAcronym"),
		RoomName:                stringField(fields, "roomName"),
		TimetableEntryTypeShort: stringField(fields, "timetableEntryTypeShort"),
		IsExamLesson:            boolField(fields, "isExamLesson"),
		raw:                     append(json.RawMessage(nil), data...),
	}
	return nil
}

// MarshalJSON returns the upstream object verbatim when the lesson was decoded
// from one, otherwise the consumed fields only.
func (l Lesson) MarshalJSON() ([]byte, error) {
	if len(l.raw) > 0 {
		return l.raw, nil
	}
	type plain Lesson
	return json.Marshal(plain(l))
}

func stringField(fields map[string]json.RawMessage, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	// Numbers and booleans keep their literal form.
	if v[0] != '{' && v[0] != '[' {
		return string(v)
	}
	return ""
}

func boolField(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}

	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return n != 0
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		parsed, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && parsed
	}
	return false
}
