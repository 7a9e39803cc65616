package auth

import "strings"

// RouteGroup is the first route segment, e.g. "(patient)"
type RouteGroup string

const (
	GroupAuth      RouteGroup = "(auth)"
	GroupPatient   RouteGroup = "(patient)"
	GroupTherapist RouteGroup = "(therapist)"
	GroupNone      RouteGroup = ""
)

const (
	RouteLogin          = "/login"
	RouteVerifyEmail    = "/verify-email"
	RoutePatientHome    = "/patient-home"
	RouteTherapistHome  = "/therapist-home"
	verifyEmailSegment  = "verify-email"
	segmentGroupPrefix  = "("
	segmentGroupPostfix = ")"
)

var routeSegments = map[string][]string{
	RouteLogin:         {string(GroupAuth), "login"},
	RouteVerifyEmail:   {string(GroupAuth), verifyEmailSegment},
	RoutePatientHome:   {string(GroupPatient), "patient-home"},
	RouteTherapistHome: {string(GroupTherapist), "therapist-home"},
}

// GuardInput is everything the guard looks at
type GuardInput struct {
	Initialized         bool
	Loading             bool
	User                *User
	PendingVerification bool
	Segments            []string
}

// GuardInputFromState builds a GuardInput for the given route
func GuardInputFromState(state SessionState, segments []string) GuardInput {
	return GuardInput{
		Initialized:         state.Initialized,
		Loading:             state.Loading,
		User:                state.User,
		PendingVerification: state.PendingVerification,
		Segments:            segments,
	}
}

// Guard returns the route the app must redirect to, first match wins.
// It returns false when the current route may stay.
func Guard(in GuardInput) (string, bool) {
	if !in.Initialized || in.Loading {
		return "", false
	}

	group := GroupOf(in.Segments)

	if in.PendingVerification {
		if IsVerificationScreen(in.Segments) {
			return "", false
		}
		return RouteVerifyEmail, true
	}

	if in.User == nil {
		if group != GroupAuth {
			return RouteLogin, true
		}
		return "", false
	}

	if group == GroupAuth {
		return in.User.Role.HomeRoute(), true
	}

	if !in.User.Role.CanEnter(group) {
		return in.User.Role.HomeRoute(), true
	}

	return "", false
}

// EvaluateGuard runs Guard against a session state
func EvaluateGuard(state SessionState, segments []string) (string, bool) {
	return Guard(GuardInputFromState(state, segments))
}

// GroupOf returns the route group of the segments
func GroupOf(segments []string) RouteGroup {
	if len(segments) == 0 {
		return GroupNone
	}
	first := strings.TrimSpace(segments[0])
	if strings.HasPrefix(first, segmentGroupPrefix) && strings.HasSuffix(first, segmentGroupPostfix) {
		return RouteGroup(first)
	}
	return GroupNone
}

// IsVerificationScreen reports whether the segments point at the verify screen
func IsVerificationScreen(segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	return segments[len(segments)-1] == verifyEmailSegment
}

// RouteSegments returns the segments a redirect target resolves to
func RouteSegments(route string) []string {
	if segs, ok := routeSegments[route]; ok {
		out := make([]string, len(segs))
		copy(out, segs)
		return out
	}
	return SplitPath(route)
}

// SplitPath splits "/(patient)/bundles" into its segments
func SplitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
