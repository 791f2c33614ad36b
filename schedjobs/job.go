package schedjobs

import "time"

// DebouncedJob runs Task once its key has been quiet for Wait.
// A newer job with the same ID replaces a pending one.
type DebouncedJob struct {
	ID         string
	Wait       time.Duration
	Task       func() error
	OnFinished func(error)
}
