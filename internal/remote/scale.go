package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/rest"
	"github.com/muurk/r1ctl/internal/wire"
)

// ScaleAdapter implements ScaleAPI. Taring goes over REST; selection is
// purely client-side bookkeeping because the controller has no endpoint
// for it.
type ScaleAdapter struct {
	client *rest.Client

	mu         sync.Mutex
	selectedID string
}

// NewScaleAdapter creates a scale adapter over the given REST client.
func NewScaleAdapter(client *rest.Client) *ScaleAdapter {
	return &ScaleAdapter{client: client}
}

// Tare zeroes the scale.
func (a *ScaleAdapter) Tare(ctx context.Context) error {
	if a.client == nil {
		return apierr.New(apierr.CategoryScale, "not_connected", "")
	}
	if err := a.client.Put(ctx, "/api/v1/scale/tare", nil, nil); err != nil {
		return apierr.Wrap(apierr.CategoryScale, "tare_failed", "", err)
	}
	return nil
}

// Select records id as the chosen scale. The id must name a scale present
// in the caller's current device listing; otherwise the previous selection
// is left untouched and a Scale-category error is returned.
func (a *ScaleAdapter) Select(id string, known []wire.Device) error {
	if !scalePresent(id, known) {
		return apierr.New(apierr.CategoryScale, "not_found",
			fmt.Sprintf("scale %q is not in the current device list", id))
	}

	a.mu.Lock()
	a.selectedID = id
	a.mu.Unlock()
	return nil
}

// Selected returns the chosen scale if it is still present in the given
// listing. A selection whose device dropped out of a fresh list silently
// resets to none.
func (a *ScaleAdapter) Selected(known []wire.Device) (wire.Device, bool) {
	a.mu.Lock()
	id := a.selectedID
	a.mu.Unlock()

	if id == "" {
		return wire.Device{}, false
	}
	for _, d := range known {
		if d.ID == id && d.Type == "scale" {
			return d, true
		}
	}

	a.mu.Lock()
	if a.selectedID == id {
		a.selectedID = ""
	}
	a.mu.Unlock()
	return wire.Device{}, false
}

func scalePresent(id string, known []wire.Device) bool {
	for _, d := range known {
		if d.ID == id && d.Type == "scale" {
			return true
		}
	}
	return false
}
