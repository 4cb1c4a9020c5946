package service

import "context"

// Service defines a long-running component of the node. Run blocks until the
// context is cancelled or the service fails.
type Service interface {
	Run(ctx context.Context) error
}
