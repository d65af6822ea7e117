package auth

// Decision is what a guarded view must do.
type Decision int

const (
	ShowLoading Decision = iota
	RedirectSignIn
	Render
)

func (d Decision) String() string {
	switch d {
	case ShowLoading:
		return "loading"
	case RedirectSignIn:
		return "redirect"
	default:
		return "render"
	}
}

// Guard decides for views that need a session. It never redirects while the initial check is pending.
func Guard(g *Gate) Decision {
	switch g.State() {
	case StatePending:
		return ShowLoading
	case StateAbsent:
		return RedirectSignIn
	default:
		return Render
	}
}
