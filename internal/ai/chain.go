package ai

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

type generatorChain struct {
	primary  Generator
	fallback Generator
}

// WithFallback returns a generator that first tries the primary runtime and
// falls back to the other one when the primary is unavailable or replies with
// nothing usable.
func WithFallback(primary, fallback Generator) Generator {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &generatorChain{primary: primary, fallback: fallback}
}

func (c *generatorChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *generatorChain) Name() string {
	return c.primary.Name() + "," + c.fallback.Name()
}

func (c *generatorChain) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	var primaryErr error
	if c.primary != nil && c.primary.Enabled() {
		text, err := c.primary.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		primaryErr = err
		logrus.WithError(err).WithField("runtime", c.primary.Name()).Warn("primary runtime failed, trying fallback")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Generate(ctx, prompt)
	}
	if primaryErr != nil {
		return "", primaryErr
	}
	return "", ErrDisabled
}
