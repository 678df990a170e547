// Package store persists the current verdict per number for reuse as a
// cache and for analytics. Freshness is decided by the caller.
package store

import (
	"fmt"

	"phonecheck/internal/verdict"
)

func validate(rec verdict.HistoryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("put history record: %w", err)
	}
	return nil
}
