package reportv1

import "context"

// Sink consumes execution reports.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=reportv1_mock
type Sink interface {
	Publish(ctx context.Context, report ExecutionReport) error
	Close() error
}
