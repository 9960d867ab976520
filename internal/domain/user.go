package domain

// User is the logged-in server user.
type User struct {
	ID    int    `json:"id,omitempty"`
	URI   string `json:"uri,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ResolvedID returns the user's numeric id, deriving it from the URI when
// the server did not send an explicit id field.
func (u User) ResolvedID() (int, bool) {
	if u.ID != 0 {
		return u.ID, true
	}
	if u.URI != "" {
		if id, err := URI2ID(u.URI); err == nil {
			return id, true
		}
	}
	return 0, false
}

// OfflineLoginData lets a user authenticate without network by recalling
// a previously cached session. Keyed uniquely by (user id, server base).
type OfflineLoginData struct {
	Code  string `json:"code"`
	Base  string `json:"base"`
	User  User   `json:"user"`
	Token string `json:"token"`
}
