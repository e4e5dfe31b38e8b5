package navigation

import "strings"

// Route groups; the first location segment names the group a screen belongs to
const (
	GroupAuth = "(auth)"
	GroupApp  = "(app)"
)

// Route path constants
const (
	RouteIndex = "/"

	// Auth group
	RouteSignIn = "/sign-in"
	RouteSignUp = "/sign-up"

	// App group
	RouteDashboard = "/dashboard"
	RouteServices  = "/services"
	RouteTasks     = "/tasks"
	RouteUsers     = "/users"
)

// groups maps a top level path element to its route group
var groups = map[string]string{
	"sign-in":   GroupAuth,
	"sign-up":   GroupAuth,
	"dashboard": GroupApp,
	"services":  GroupApp,
	"tasks":     GroupApp,
	"users":     GroupApp,
}

// Segments resolves a path to its grouped location, e.g. "/users/42" is
// ["(app)", "users", "42"]. The root path has no segments and unknown paths
// are returned ungrouped.
func Segments(path string) []string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return []string{}
	}
	group, ok := groups[parts[0]]
	if !ok {
		return parts
	}
	return append([]string{group}, parts...)
}

// InGroup reports whether a location belongs to the named group
func InGroup(segments []string, group string) bool {
	return len(segments) > 0 && segments[0] == group
}

func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	parts := make([]string, 0, 4)
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Clean normalises a path to a leading slash without a trailing one
func Clean(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}
