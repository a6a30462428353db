package session

// Session defines a public type used by memberauth APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	SessionID string
	MemberID  string

	IP        string
	UserAgent string

	RememberMe bool
	Active     bool

	CreatedAt    int64
	LastActiveAt int64
	ExpiresAt    int64
}
