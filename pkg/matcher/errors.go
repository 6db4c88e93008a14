package matcher

import (
	"errors"

	"github.com/xhad/resumatch/pkg/parser"
)

var (
	// ErrInvalidInput covers unreadable uploads and empty job descriptions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoResume means the session has no ingested resume to query.
	ErrNoResume = errors.New("no resume data found for this session, upload a resume first")
	// ErrAlreadyIngested is returned when the same filename is uploaded twice
	// into the session's current collection.
	ErrAlreadyIngested = errors.New("file already ingested in this session")
	// ErrUnsupportedFormat is returned for extensions the parser cannot read.
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat
	// ErrFetchFailed means a job posting URL could not be retrieved.
	ErrFetchFailed = errors.New("failed to fetch job posting")
)
