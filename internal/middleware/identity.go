package middleware

import "github.com/labstack/echo/v4"

// Identity is the authenticated caller.  The zero value is anonymous.
type Identity struct {
    UserID string
    Email  string
    Name   string
}

func (i Identity) Anonymous() bool { return i.UserID == "" }

// IdentityFrom reads what JWTAuth or OptionalAuth stored on the context.
func IdentityFrom(c echo.Context) Identity {
    s := func(key string) string {
        v, _ := c.Get(key).(string)
        return v
    }
    return Identity{UserID: s(ctxUserID), Email: s(ctxEmail), Name: s(ctxName)}
}

// SetIdentity stores id the way the auth middleware does.  Handler tests
// use it to skip token signing.
func SetIdentity(c echo.Context, id Identity) {
    c.Set(ctxUserID, id.UserID)
    c.Set(ctxEmail, id.Email)
    c.Set(ctxName, id.Name)
}

// userKey is the rate limit key component for the caller.
func userKey(c echo.Context) string {
    if id := IdentityFrom(c); !id.Anonymous() {
        return id.UserID
    }
    return "anon"
}
