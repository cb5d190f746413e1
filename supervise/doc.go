// Package supervise provides the reference subsystem: it runs a
// process-supervision tree (runit's runsvdir or daemontools' svscan) for
// the lifetime of the host.
//
// Units are declared in properties and installed by AutoProcess:
//
//	supervise.unit.web.cmd: /usr/local/bin/web --port 8080
//	supervise.unit.web.env.PORT: "8080"
//	supervise.auto.start.10: web
//
// The Client type talks to a single unit's supervise process directly
// through its control FIFO and binary status file, without exec'ing sv or
// svc. Framework, FrameworkFactory and Discovery are interfaces, so tests
// and embedders can swap the tree for another engine.
package supervise
