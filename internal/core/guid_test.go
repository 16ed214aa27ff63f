package core

import "testing"

func TestLocalMessageID(t *testing.T) {
	a := LocalMessageID()
	b := LocalMessageID()
	if a == b {
		t.Error("local ids must be unique")
	}
	if !IsLocalID(a) {
		t.Errorf("IsLocalID(%q) = false, want true", a)
	}
	if IsLocalID("42") || IsLocalID(NotificationID()) {
		t.Error("server and notification ids must not look local")
	}
}
