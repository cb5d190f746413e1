package subsys

// Config is what a host hands a subsystem at configure time
type Config struct {
	// NameServer resolves shared services such as the LogServer. Required.
	NameServer NameServer
	// Properties is the host's merged kernel and system layer
	Properties Properties
}

// Validate reports a *PreconditionError if a required field is missing
func (c Config) Validate(subsystem string) error {
	if c.NameServer == nil {
		return &PreconditionError{
			Subsystem: subsystem,
			Reason:    "a NameServer is required for configuration",
		}
	}
	return nil
}

// MustValidate panics with a *PreconditionError if Validate fails.
// Subsystems call it first thing in Configure.
func (c Config) MustValidate(subsystem string) {
	if err := c.Validate(subsystem); err != nil {
		panic(err)
	}
}
