package testutil

import (
	"net/http"
	"time"

	id "vendemos/pkg/domain"
	"vendemos/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context the way the auth
// middleware does. Invalid IDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithRequestTime pins the request time seen by services.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
