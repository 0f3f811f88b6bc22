package health

import "context"

// Checker probes one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts a DBPinger to Checker.
func PingChecker(p DBPinger) Checker {
	return CheckerFunc(p.Ping)
}
