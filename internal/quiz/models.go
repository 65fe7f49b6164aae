package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

type Level string

const (
	LevelEasy   Level = "Easy"
	LevelMedium Level = "Medium"
	LevelHard   Level = "Hard"
)

// ParseLevel accepts exactly the three level names, case-sensitive.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelEasy, LevelMedium, LevelHard:
		return Level(s), nil
	}
	return "", &ValidationError{Field: "level", Reason: "must be one of Easy, Medium, Hard"}
}

type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

func (s Status) Terminal() bool { return s == StatusProcessed || s == StatusError }

// CanTransition reports whether the upload state machine allows from -> to
// outside of a reparse.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusUploaded:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusProcessed || to == StatusError
	}
	return false
}

type Type string

const (
	TypeMCQ         Type = "mcq"
	TypeShortAnswer Type = "short_answer"
	TypeImageBased  Type = "image_based"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeMCQ, TypeShortAnswer, TypeImageBased:
		return Type(s), nil
	}
	return "", &ValidationError{Field: "question_type", Reason: "must be one of mcq, short_answer, image_based"}
}

type Upload struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	Level       Level      `json:"level"`
	FileName    string     `json:"file_name"`
	FilePath    string     `json:"file_path"` // relative to the storage root, forward slashes
	FileSize    int64      `json:"file_size"`
	FileType    string     `json:"file_type"`
	UploadedBy  string     `json:"uploaded_by"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	Status      Status     `json:"status"`
}

type Question struct {
	ID          string    `json:"id"`
	UploadID    string    `json:"quiz_upload_id"`
	CourseID    string    `json:"course_id"`
	Level       Level     `json:"level"`
	Number      int       `json:"question_number"`
	Text        string    `json:"question_text"`
	Options     []string  `json:"options"`
	Correct     Correct   `json:"correct_answer"`
	Explanation string    `json:"explanation"`
	Type        Type      `json:"question_type"`
	ImageURL    *string   `json:"image_url"`
	TablesJSON  *string   `json:"-"`
	MathJSON    *string   `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Correct is the correctness signal: an option index for multiple choice, the
// literal expected text otherwise.
type Correct struct {
	Index  int
	Text   string
	ByText bool
}

func CorrectIndex(i int) Correct   { return Correct{Index: i} }
func CorrectText(s string) Correct { return Correct{Text: s, ByText: true} }
func (c Correct) IsIndex() bool    { return !c.ByText }
func (c Correct) String() string {
	if c.ByText {
		return c.Text
	}
	return strconv.Itoa(c.Index)
}

func (c Correct) MarshalJSON() ([]byte, error) {
	if c.ByText {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Index)
}

func (c *Correct) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = CorrectText(s)
		return nil
	}
	var i int
	if err := json.Unmarshal(b, &i); err != nil {
		return errors.New("correct_answer must be an integer index or a string")
	}
	*c = CorrectIndex(i)
	return nil
}
