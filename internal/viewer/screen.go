// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import "strings"

// Screen is one of the mutually exclusive top-level views of the application.
type Screen int

const (
	ScreenSigningIn Screen = iota
	ScreenNeedsSignIn
	ScreenNeedsContainerSelection
	ScreenViewing
)

func (s Screen) String() string {
	switch s {
	case ScreenSigningIn:
		return "signing_in"
	case ScreenNeedsSignIn:
		return "needs_sign_in"
	case ScreenNeedsContainerSelection:
		return "needs_container_selection"
	case ScreenViewing:
		return "viewing"
	default:
		return "unknown"
	}
}

// MarshalText renders the screen name.
func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SelectScreen maps application state to the screen to render. The first
// matching guard wins.
func SelectScreen(st AppState, currentURL, redirectURI string) Screen {
	switch {
	case st.Session.IsLoading || isRedirectTarget(currentURL, redirectURI):
		return ScreenSigningIn
	case !st.Session.IsAuthorized:
		return ScreenNeedsSignIn
	case st.container == nil || st.viewID == "":
		return ScreenNeedsContainerSelection
	default:
		return ScreenViewing
	}
}

// isRedirectTarget reports whether currentURL contains the redirect URI
// without its scheme.
func isRedirectTarget(currentURL, redirectURI string) bool {
	parts := strings.Split(redirectURI, "://")
	target := parts[len(parts)-1]
	if target == "" {
		return false
	}
	return strings.Contains(currentURL, target)
}
