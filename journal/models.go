package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/etlkit/subpipeline"
)

// Entry is the journal record of one nested pipeline invocation.
type Entry struct {
	ID           string `gorm:"primaryKey;size:36"`
	InvocationID string `gorm:"size:36;index"`
	Step         string `gorm:"index"`
	Pipeline     string
	LogChannelID string `gorm:"size:50"`
	GroupSize    int
	Status       string `gorm:"size:16;index"`
	Succeeded    bool
	Errors       int

	LinesRead     int64
	LinesWritten  int64
	LinesInput    int64
	LinesOutput   int64
	LinesRejected int64
	LinesUpdated  int64
	LinesDeleted  int64

	FilesRetrieved int
	ExitStatus     int
	DurationMs     int64
	Error          string
	LogText        string

	StartedAt time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName implements gorm's tabler.
func (Entry) TableName() string { return "invocations" }

// BeforeCreate generates an ID if not already set.
func (e *Entry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// NewEntry builds the journal record of one invocation.
func NewEntry(step, pipeline, invocationID string, groupSize int, started time.Time, out *subpipeline.Outcome) *Entry {
	e := &Entry{
		InvocationID: invocationID,
		Step:         step,
		Pipeline:     pipeline,
		GroupSize:    groupSize,
		StartedAt:    started,
	}
	if out == nil {
		return e
	}
	e.LogChannelID = out.LogChannelID
	e.Status = out.Status()
	e.Succeeded = out.Succeeded
	e.Errors = out.Errors
	e.LinesRead = out.Read
	e.LinesWritten = out.Written
	e.LinesInput = out.Input
	e.LinesOutput = out.Output
	e.LinesRejected = out.Rejected
	e.LinesUpdated = out.Updated
	e.LinesDeleted = out.Deleted
	e.FilesRetrieved = out.FilesRetrieved
	e.ExitStatus = out.ExitStatus
	e.DurationMs = out.Elapsed.Milliseconds()
	e.LogText = out.LogText
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	return e
}
