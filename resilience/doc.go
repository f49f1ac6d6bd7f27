// Package resilience retries operations that fail transiently, such as
// opening the journal database while another process holds its lock.
//
//	db, err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 3}, func() (*gorm.DB, error) {
//	    return gorm.Open(sqlite.Open(dsn), cfg)
//	})
package resilience
