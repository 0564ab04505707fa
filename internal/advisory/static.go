package advisory

import (
	"context"
)

// StaticAdvisor answers every request with fixed guidance text.
type StaticAdvisor struct {
	Guidance string
	Err      error
}

// Advise returns the canned guidance, or Err when set.
func (s StaticAdvisor) Advise(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Guidance, nil
}
