package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled ledger maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in run order. Names are unique.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, skipping nils. A repeated name
// replaces the earlier job in place.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register appends job, or replaces the job already registered under its name.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	for i, existing := range r.jobs {
		if existing.Name() == job.Name() {
			r.jobs[i] = job
			return
		}
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs in run order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Only narrows the registry to the named jobs, keeping run order. An empty
// selection keeps every job; an unknown name is an error.
func (r *Registry) Only(names ...string) (*Registry, error) {
	wanted := map[string]bool{}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}
	if len(wanted) == 0 {
		return NewRegistry(r.jobs...), nil
	}
	selected := &Registry{}
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			selected.jobs = append(selected.jobs, job)
			delete(wanted, job.Name())
		}
	}
	for name := range wanted {
		return nil, fmt.Errorf("unknown cron job %q", name)
	}
	return selected, nil
}
