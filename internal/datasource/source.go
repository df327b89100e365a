// Package datasource loads the collections a console screen renders. Every
// collection comes from the backend when it answers with content and from
// built-in placeholder records otherwise.
package datasource

import (
	"context"

	"carbonseed.io/console/pkg/api"
)

// TimeSeriesLimit is how many readings are requested per device.
const TimeSeriesLimit = 100

// Source yields the collections a screen renders.
type Source interface {
	Users(ctx context.Context) ([]api.User, error)
	Factories(ctx context.Context) ([]api.Factory, error)
	Devices(ctx context.Context) ([]api.Device, error)
	// Alerts returns the active alerts.
	Alerts(ctx context.Context) ([]api.Alert, error)
	Latest(ctx context.Context) (*api.LatestData, error)
	TimeSeries(ctx context.Context, deviceID int) ([]api.Reading, error)
}

// Backend is the part of the REST client a Remote source needs.
type Backend interface {
	Users(ctx context.Context, token string) ([]api.User, error)
	Factories(ctx context.Context, token string) ([]api.Factory, error)
	Devices(ctx context.Context, token string) ([]api.Device, error)
	Alerts(ctx context.Context, token string, status api.AlertStatus) ([]api.Alert, error)
	Latest(ctx context.Context, token string) (*api.LatestData, error)
	TimeSeries(ctx context.Context, token string, deviceID, limit int) ([]api.Reading, error)
}

var _ Backend = (*api.Client)(nil)

// Remote reads collections from the backend on behalf of one session.
type Remote struct {
	backend Backend
	token   string
}

// NewRemote binds backend to the session token.
func NewRemote(backend Backend, token string) *Remote {
	return &Remote{backend: backend, token: token}
}

// Users implements Source.
func (r *Remote) Users(ctx context.Context) ([]api.User, error) {
	return r.backend.Users(ctx, r.token)
}

// Factories implements Source.
func (r *Remote) Factories(ctx context.Context) ([]api.Factory, error) {
	return r.backend.Factories(ctx, r.token)
}

// Devices implements Source.
func (r *Remote) Devices(ctx context.Context) ([]api.Device, error) {
	return r.backend.Devices(ctx, r.token)
}

// Alerts implements Source.
func (r *Remote) Alerts(ctx context.Context) ([]api.Alert, error) {
	return r.backend.Alerts(ctx, r.token, api.AlertActive)
}

// Latest implements Source.
func (r *Remote) Latest(ctx context.Context) (*api.LatestData, error) {
	return r.backend.Latest(ctx, r.token)
}

// TimeSeries implements Source.
func (r *Remote) TimeSeries(ctx context.Context, deviceID int) ([]api.Reading, error) {
	return r.backend.TimeSeries(ctx, r.token, deviceID, TimeSeriesLimit)
}
