package sheets

import "context"

// Ports for outbound adapters.
type (
	// ValuesClient reads and writes A1 ranges of one spreadsheet.
	ValuesClient interface {
		Read(ctx context.Context, rng string) ([][]any, error)
		Write(ctx context.Context, rng string, rows [][]any) error
		Clear(ctx context.Context, rng string) error
	}
)
