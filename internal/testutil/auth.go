package testutil

import "jch-go/internal/history"

// Auth returns an Authorization with the given capabilities.
func Auth(system, jobs bool) history.Authorization {
	return history.Authorization{Subject: "tester", ConfigureSystem: system, ConfigureJobs: jobs}
}

// StaticAuthorizer grants capabilities from a fixed table. Subjects not in
// the table get nothing.
type StaticAuthorizer map[string][]history.Capability

func (a StaticAuthorizer) HasCapability(subject string, capability history.Capability) bool {
	for _, c := range a[subject] {
		if c == capability {
			return true
		}
	}
	return false
}
