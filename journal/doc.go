// Package journal persists one entry per nested pipeline invocation in a
// SQL database through GORM, so that past runs of a batch step can be
// listed and inspected after the process exits.
//
// The default driver is SQLite:
//
//	j, err := journal.Open(ctx, journal.Config{Enabled: true, DSN: "runs.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//	entries, err := j.List(ctx, journal.Filter{Step: "enrich"})
//
// A Component wraps the journal for the component registry.
package journal
