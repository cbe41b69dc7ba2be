package batch

import (
	"sync"

	"github.com/jmcleod/certflux/csr"
)

// ItemError pairs a failed identifier with its human-readable cause.
type ItemError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Result aggregates a batch run. Successful+Failed always equals the
// number of submitted jobs, and Errors lists exactly the failed
// identifiers in input order regardless of execution mode.
type Result struct {
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// Coordinator runs a collection of jobs against one Runner, either
// strictly in input order or over a bounded worker pool. One job's
// failure never aborts another's pipeline; the shared CA handle is
// read-only across workers.
type Coordinator struct {
	runner     *Runner
	parallel   bool
	maxWorkers int
}

// NewCoordinator builds a Coordinator. maxWorkers bounds the pool in
// parallel mode; values below 1 fall back to a single worker.
func NewCoordinator(runner *Runner, parallel bool, maxWorkers int) *Coordinator {
	return &Coordinator{runner: runner, parallel: parallel, maxWorkers: maxWorkers}
}

// Process runs every job to completion or failure and aggregates the
// report. No retries, no cancellation: a failed item is reported, not
// retried.
func (c *Coordinator) Process(jobs []Job) Result {
	errs := make([]error, len(jobs))

	if c.parallel && len(jobs) > 1 {
		c.runPool(jobs, errs)
	} else {
		for i, job := range jobs {
			_, errs[i] = c.runner.Run(job)
		}
	}

	// Aggregate in input order so both modes report identically.
	var result Result
	for i, err := range errs {
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Name: jobs[i].Name, Message: err.Error()})
			continue
		}
		result.Successful++
	}
	return result
}

func (c *Coordinator) runPool(jobs []Job, errs []error) {
	workers := c.maxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				_, errs[i] = c.runner.Run(jobs[i])
			}
		}()
	}
	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
}

// BuildJobs expands identifiers into jobs sharing a SAN set and key
// passphrase.
func BuildJobs(names []string, commonSANs []csr.SAN, passphrase []byte) []Job {
	jobs := make([]Job, len(names))
	for i, name := range names {
		jobs[i] = Job{Name: name, SANs: commonSANs, Passphrase: passphrase}
	}
	return jobs
}
