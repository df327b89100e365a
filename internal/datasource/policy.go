package datasource

import "carbonseed.io/console/pkg/api"

// Origin names where a collection was read from.
type Origin string

const (
	OriginRemote      Origin = "remote"
	OriginPlaceholder Origin = "placeholder"
)

// Fallback reasons.
const (
	ReasonError = "error"
	ReasonEmpty = "empty"
)

// Prefer picks the remote result when the fetch succeeded with content and
// keeps fallback otherwise. reason is empty when the remote result was taken.
func Prefer[T any](remote []T, err error, fallback []T) (out []T, origin Origin, reason string) {
	switch {
	case err != nil:
		return fallback, OriginPlaceholder, ReasonError
	case len(remote) == 0:
		return fallback, OriginPlaceholder, ReasonEmpty
	default:
		return remote, OriginRemote, ""
	}
}

// PreferLatest applies the same policy to the fleet summary, where "empty"
// means every nullable field is null.
func PreferLatest(remote *api.LatestData, err error, fallback api.LatestData) (api.LatestData, Origin, string) {
	switch {
	case err != nil:
		return fallback, OriginPlaceholder, ReasonError
	case remote.Empty():
		return fallback, OriginPlaceholder, ReasonEmpty
	default:
		return *remote, OriginRemote, ""
	}
}
