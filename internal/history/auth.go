package history

// Capability is a permission the host can grant a subject.
type Capability string

const (
	CapConfigureSystem Capability = "configure_system"
	CapConfigureJobs   Capability = "configure_jobs"
)

// Authorizer is the host's permission system.
type Authorizer interface {
	HasCapability(subject string, capability Capability) bool
}

// Authorization is the result of the capability checks for one request.
// It is computed once at the top of a request and passed down.
type Authorization struct {
	Subject         string
	ConfigureSystem bool
	ConfigureJobs   bool
}

// Authorize evaluates every capability the core cares about for subject.
func Authorize(a Authorizer, subject string) Authorization {
	return Authorization{
		Subject:         subject,
		ConfigureSystem: a.HasCapability(subject, CapConfigureSystem),
		ConfigureJobs:   a.HasCapability(subject, CapConfigureJobs),
	}
}

// CanReadObject reports whether the subject may view raw or diffed
// content of name outside a job's own page.
func (a Authorization) CanReadObject(name string) bool {
	return (IsDeletedName(name) && a.ConfigureJobs) || a.ConfigureSystem
}

// AllowAll grants every capability to every subject.
type AllowAll struct{}

func (AllowAll) HasCapability(string, Capability) bool { return true }
