package datasource

import "carbonseed.io/console/pkg/api"

// ApplyRole returns a copy of users with user id switched to role. The
// change is local; callers apply it whatever the backend answered.
func ApplyRole(users []api.User, id int, role api.Role) []api.User {
	out := make([]api.User, len(users))
	copy(out, users)
	for i := range out {
		if out[i].ID == id {
			out[i].Role = role
		}
	}
	return out
}

// FindUser returns the user with id.
func FindUser(users []api.User, id int) (api.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return api.User{}, false
}

// ActiveAlerts keeps at most limit alerts in backend order.
func ActiveAlerts(alerts []api.Alert, limit int) []api.Alert {
	if limit >= 0 && len(alerts) > limit {
		return alerts[:limit]
	}
	return alerts
}
