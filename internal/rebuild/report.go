package rebuild

import (
	"sort"

	"github.com/hashicorp/go-multierror"
)

// NamespaceReport counts what one namespace contributed to the queue.
type NamespaceReport struct {
	Units        int `json:"units"`
	Translations int `json:"translations"`
	Attachments  int `json:"attachments"`
	Objects      int `json:"objects"`
	Failed       int `json:"failed"`
	// Partial counts units enqueued without some of their dependents.
	Partial int     `json:"partial"`
	Errors  []error `json:"-"`
}

// Queued is the number of entries this namespace enqueued.
func (n *NamespaceReport) Queued() int {
	return n.Units + n.Translations + n.Attachments + n.Objects
}

// Report is the outcome of a rebuild.
type Report struct {
	Namespaces map[string]*NamespaceReport `json:"namespaces"`
	// Failed is set when the rebuild could not enumerate at all; the
	// counts are then meaningless.
	Failed bool  `json:"failed"`
	err    error // systemic failure, if any
}

func newReport() *Report {
	return &Report{Namespaces: make(map[string]*NamespaceReport)}
}

// Total is the number of entries enqueued across all namespaces.
func (r *Report) Total() int {
	total := 0
	for _, n := range r.Namespaces {
		total += n.Queued()
	}
	return total
}

// FailedUnits is the number of units skipped across all namespaces.
func (r *Report) FailedUnits() int {
	failed := 0
	for _, n := range r.Namespaces {
		failed += n.Failed
	}
	return failed
}

// PartialUnits is the number of units enqueued with a failed dependent
// listing across all namespaces.
func (r *Report) PartialUnits() int {
	partial := 0
	for _, n := range r.Namespaces {
		partial += n.Partial
	}
	return partial
}

// Names returns the namespaces in sorted order.
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Namespaces))
	for ns := range r.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Err aggregates the systemic failure and every per-unit failure, or
// returns nil when there were none.
func (r *Report) Err() error {
	var result *multierror.Error
	if r.err != nil {
		result = multierror.Append(result, r.err)
	}
	for _, ns := range r.Names() {
		result = multierror.Append(result, r.Namespaces[ns].Errors...)
	}
	return result.ErrorOrNil()
}
