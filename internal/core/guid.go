package core

import (
	"strings"

	"github.com/google/uuid"
)

// LocalMessageID generates a temporary id for an optimistically inserted
// message. The "tmp-" prefix keeps it distinct from any server id.
func LocalMessageID() string {
	return "tmp-" + uuid.NewString()
}

// NotificationID generates an id for a transient notification.
func NotificationID() string {
	return "ntf-" + uuid.NewString()
}

// IsLocalID reports whether id was produced by LocalMessageID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, "tmp-")
}
