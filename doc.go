// Package subsys hosts pluggable subsystems inside one process and drives
// them through a fixed lifecycle: configure, start, stop.
//
// A Subsystem has a constant identity (a UUID and a name) and an immutable
// attribute map. The host hands it a Config holding a NameServer, through
// which it resolves shared services such as the LogServer, and a Properties
// layer that it overlays on its own bundled defaults:
//
//	dir := subsys.NewDirectory()
//	_ = dir.Bind(subsys.LogServerName, subsys.NewLogServer(logger))
//
//	host := subsys.NewHost(dir, props, subsys.WithStopTimeout(30*time.Second))
//	_ = host.Register(supervise.New())
//	err := host.Run(ctx)
//
// # Results
//
// Lifecycle methods report through Result rather than error. A NOT_OK
// Result carries a short code and a message key. Only programmer errors,
// such as a Config without a NameServer, panic with a *PreconditionError.
//
// # Host
//
// The Host configures every registered subsystem in registration order,
// then starts them in the same order and stops them in reverse. The first
// NOT_OK Result halts startup and already started subsystems are stopped.
// Stop attempts every subsystem and collects failures in a *MultiError.
package subsys
