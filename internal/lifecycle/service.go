// internal/lifecycle/service.go
package lifecycle

import (
	"context"
)

// Service defines the interface for the lifecycle supervisor.
type Service interface {
	// Run performs one supervisor tick: load, classify, commit, notify.
	Run(ctx context.Context) (*Summary, error)
}
