package ebay

import (
	"github.com/giantswarm/oauth2-ebay/internal/payload"
	"github.com/giantswarm/oauth2-ebay/providers"
)

// Dotted paths into a GetUser response.
const (
	pathUserID      = "User.UserID"
	pathUserEmail   = "User.Email"
	pathUserStatus  = "User.Status"
	pathUserName    = "User.RegistrationAddress.Name"
	pathUserSite    = "User.Site"
	userStatusValid = "Confirmed"

	// getUserResponseRoot is the root element of a Trading API GetUser reply.
	getUserResponseRoot = "GetUserResponse"
)

// User is the eBay account that authorized a token. It wraps the normalized
// GetUser response; fields eBay omits are reported as absent.
type User struct {
	data payload.Value
}

// NewUser wraps a normalized response. An XML response is keyed by its root
// element, which is unwrapped so that paths start at the response body.
func NewUser(v payload.Value) *User {
	if inner, ok := v.Fields[getUserResponseRoot]; ok && v.Kind == payload.KindMap && len(v.Fields) == 1 {
		v = inner
	}
	return &User{data: v}
}

// ID returns the eBay user id (User.UserID).
func (u *User) ID() (string, bool) {
	return u.Value(pathUserID)
}

// Email returns the registered email address (User.Email). eBay masks it for
// most applications, returning "Invalid Request" instead.
func (u *User) Email() (string, bool) {
	return u.Value(pathUserEmail)
}

// Value returns the scalar at a dotted path such as "User.Site".
func (u *User) Value(path string) (string, bool) {
	return payload.LookupString(u.data, path)
}

// Raw returns the whole normalized response.
func (u *User) Raw() payload.Value {
	return u.data
}

// ToMap returns the response as plain Go maps, lists and strings.
func (u *User) ToMap() map[string]any {
	m, _ := u.data.Interface().(map[string]any)
	return m
}

// UserInfo maps the response onto the provider-neutral user description.
func (u *User) UserInfo() *providers.UserInfo {
	info := &providers.UserInfo{}
	info.ID, _ = u.ID()
	info.Email, _ = u.Email()
	status, _ := u.Value(pathUserStatus)
	info.EmailVerified = status == userStatusValid
	info.Name, _ = u.Value(pathUserName)
	info.Locale, _ = u.Value(pathUserSite)
	return info
}
