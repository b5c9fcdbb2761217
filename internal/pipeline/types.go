package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allaspectsdev/storepulse/internal/aggregate"
	"github.com/allaspectsdev/storepulse/internal/archive"
	"github.com/allaspectsdev/storepulse/internal/gateway"
)

// DateLayout is the business date format accepted by every run.
const DateLayout = "2006-01-02"

// Source says where a run's archive came from.
type Source string

const (
	SourceGateway Source = "gateway"
	SourceArchive Source = "archive"
)

// ErrorKind classifies a failed run for logs, metrics and the run log.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindInput        ErrorKind = "input"
	KindAuth         ErrorKind = "auth"
	KindTransfer     ErrorKind = "transfer"
	KindBlobNotFound ErrorKind = "blob_not_found"
	KindArchive      ErrorKind = "archive"
	KindPersistence  ErrorKind = "persistence"
	KindCanceled     ErrorKind = "canceled"
	KindInternal     ErrorKind = "internal"
)

var (
	ErrInvalidDate     = errors.New("pipeline: business date must be YYYY-MM-DD")
	ErrGatewayDisabled = fmt.Errorf("%w: no gateway configured", gateway.ErrAuth)
	errStagePanicked   = errors.New("pipeline: stage panicked")
)

// ValidateDate checks date is a real calendar day in YYYY-MM-DD form.
func ValidateDate(date string) error {
	t, err := time.Parse(DateLayout, date)
	if err != nil || t.Format(DateLayout) != date {
		return fmt.Errorf("%w: got %q", ErrInvalidDate, date)
	}
	return nil
}

// Yesterday returns the business date before now in now's location.
func Yesterday(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(DateLayout)
}

// Classify maps err to an ErrorKind. Sentinels from the stage packages win;
// anything else takes fallback, the kind of the stage that failed.
func Classify(err error, fallback ErrorKind) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidDate):
		return KindInput
	case errors.Is(err, gateway.ErrAuth):
		return KindAuth
	case errors.Is(err, gateway.ErrBlobNotFound):
		return KindBlobNotFound
	case errors.Is(err, gateway.ErrTransfer):
		return KindTransfer
	case errors.Is(err, archive.ErrArchive):
		return KindArchive
	case errors.Is(err, aggregate.ErrPersistence):
		return KindPersistence
	case errors.Is(err, errStagePanicked):
		return KindInternal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return fallback
}

// Request selects one import run.
type Request struct {
	Date    string
	Source  Source
	Archive string // local zip; only for SourceArchive
}

// Result describes a finished run. It is returned for failed runs too.
type Result struct {
	RunID         string
	Date          string
	Source        Source
	OK            bool
	Kind          ErrorKind
	Err           error
	FeedRows      int
	DroppedRows   int
	Stores        int
	AggregateRows int
	Timings       map[string]time.Duration
	Elapsed       time.Duration
}
