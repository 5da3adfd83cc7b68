package app

import (
	"fmt"

	"jch-go/internal/config"
	"jch-go/internal/history"
)

// UserTable is a static history.Authorizer built from config.Users. An
// empty table grants every capability to every subject.
type UserTable struct {
	grants map[string]map[history.Capability]bool
}

var _ history.Authorizer = (*UserTable)(nil)

// NewUserTable builds a UserTable, rejecting unknown capability names.
func NewUserTable(users []config.UserConfig) (*UserTable, error) {
	t := &UserTable{grants: make(map[string]map[history.Capability]bool)}
	for _, u := range users {
		caps := t.grants[u.Name]
		if caps == nil {
			caps = make(map[history.Capability]bool)
			t.grants[u.Name] = caps
		}
		for _, c := range u.Capabilities {
			capability := history.Capability(c)
			switch capability {
			case history.CapConfigureSystem, history.CapConfigureJobs:
				caps[capability] = true
			default:
				return nil, fmt.Errorf("user %s: unknown capability %q", u.Name, c)
			}
		}
	}
	return t, nil
}

func (t *UserTable) HasCapability(subject string, capability history.Capability) bool {
	if len(t.grants) == 0 {
		return true
	}
	return t.grants[subject][capability]
}
