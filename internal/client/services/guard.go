package services

// Decision is what a protected view should do for a given session.
type Decision int

const (
	RenderLoading Decision = iota
	RedirectLogin
	RenderProtected
)

func (d Decision) String() string {
	switch d {
	case RenderLoading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RenderProtected:
		return "render"
	default:
		return "unknown"
	}
}

// Guard decides access to protected views. It has no side effects.
func Guard(s SessionState) Decision {
	if s.IsLoading {
		return RenderLoading
	}
	if !s.IsAuthenticated() {
		return RedirectLogin
	}
	return RenderProtected
}
