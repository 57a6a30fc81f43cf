package driver

import "time"

// FileStatus is the state of one file in a batch.
type FileStatus int

const (
	FileQueued FileStatus = iota
	FileCompiling
	FileCached
	FileDone
	FileFailed
)

func (s FileStatus) String() string {
	switch s {
	case FileQueued:
		return "queued"
	case FileCompiling:
		return "compiling"
	case FileCached:
		return "cached"
	case FileDone:
		return "done"
	case FileFailed:
		return "error"
	default:
		return "unknown"
	}
}

// FileEvent reports a state change of one file.
type FileEvent struct {
	Path    string
	Status  FileStatus
	Err     error
	Elapsed time.Duration
}

// FileObserver receives FileEvents from CompileFiles. It is called from
// worker goroutines.
type FileObserver func(FileEvent)
