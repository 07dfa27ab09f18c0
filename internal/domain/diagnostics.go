package domain

import "time"

// DependencyStatus indicates whether a single capability probe passed.
type DependencyStatus string

const (
	DependencyStatusPass DependencyStatus = "pass"
	DependencyStatusFail DependencyStatus = "fail"
)

// DependencyItem is one capability probe result with optional hint.
type DependencyItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DependencyStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DependencyReport aggregates capability probes for the pipeline gate.
type DependencyReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DependencyItem `json:"items"`
}

// Missing returns the names of every capability that failed its probe.
func (r DependencyReport) Missing() []string {
	var names []string
	for _, item := range r.Items {
		if item.Status == DependencyStatusFail {
			names = append(names, item.Name)
		}
	}
	return names
}
