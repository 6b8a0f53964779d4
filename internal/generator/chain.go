package generator

import (
	"context"
	"errors"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/shared/telemetry"
)

// Chain tries each generator in order and returns the first OK result.
type Chain []Generator

// Generate returns the first successful result, or a failed result joining
// every attempt's error.
func (c Chain) Generate(ctx context.Context, inquiry inquiries.Inquiry) GenerationResult {
	var errs []error
	method := ""
	for _, g := range c {
		if err := ctx.Err(); err != nil {
			return Failed(method, err)
		}
		res := g.Generate(ctx, inquiry)
		if res.OK {
			return res
		}
		method = res.Method
		if res.Err != nil {
			errs = append(errs, res.Err)
			telemetry.Warn("generator.attempt_failed", map[string]any{
				"inquiry_id": inquiry.ID,
				"method":     res.Method,
				"error":      res.Err.Error(),
			})
		}
	}
	return Failed(method, errors.Join(errs...))
}

var _ Generator = Chain(nil)
