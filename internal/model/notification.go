package model

// Push notification types, carried in the FCM data payload.
const (
	NotificationTypeNewRequest   = "new_request"
	NotificationTypeMatched      = "matched"
	NotificationTypeMessage      = "message"
	NotificationTypeTempPassword = "temp_password"
)

// PushMessage is a rendered push notification for one user.
type PushMessage struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
}
