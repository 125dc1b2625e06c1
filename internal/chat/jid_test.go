package chat

import "testing"

func TestJIDKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		jid  string
		want Kind
	}{
		{"1234567890-987654321@g.us", KindGroup},
		{"15551234567@s.whatsapp.net", KindUser},
		{"somebody@broadcast", KindBroadcast},
		{"status@broadcast", KindStatus},
		{"", KindUnknown},
		{"garbage", KindUnknown},
	}

	for _, tt := range tests {
		if got := JID(tt.jid).Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %v, want %v", tt.jid, got, tt.want)
		}
	}
}

func TestStatusIsNotPlainBroadcast(t *testing.T) {
	t.Parallel()
	j := JID("status@broadcast")
	if j.Kind() != KindStatus {
		t.Fatalf("Kind = %v, want KindStatus", j.Kind())
	}
	if j.IsGroup() || j.IsUser() {
		t.Fatal("status JID must be neither group nor user")
	}
}
