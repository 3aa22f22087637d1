package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"econdash/internal/model"
)

var ErrMissingCredential = errors.New("providers: api credential is not configured")

type Provider interface {
	Name() string
	FetchObservations(ctx context.Context, seriesID string, start, end time.Time) ([]model.Observation, error)
}

// FetchError reports a non-success response from a provider.
type FetchError struct {
	Provider   string
	SeriesID   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: fetch %s failed (status %d): %s", e.Provider, e.SeriesID, e.StatusCode, body)
}
