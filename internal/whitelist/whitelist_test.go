package whitelist

import (
	"reflect"
	"testing"

	"offhoursbot/internal/chat"
)

func TestEmptyListAllowsEverything(t *testing.T) {
	t.Parallel()
	l := New()
	if !l.Allows(chat.JID("any@g.us")) {
		t.Fatal("empty whitelist must allow all groups")
	}
	if !l.Empty() {
		t.Fatal("Empty() should be true")
	}
}

func TestReplaceKeepsOnlyGroups(t *testing.T) {
	t.Parallel()
	l := New()
	accepted := l.Replace([]string{
		"g1@g.us",
		"user@s.whatsapp.net", // dropped: not a group
		"status@broadcast",    // dropped
		"g2@g.us",
		"g1@g.us", // duplicate
		"junk",    // dropped
	})

	want := []string{"g1@g.us", "g2@g.us"}
	if !reflect.DeepEqual(accepted, want) {
		t.Fatalf("accepted = %v, want %v", accepted, want)
	}
	if !reflect.DeepEqual(l.Snapshot(), want) {
		t.Fatalf("Snapshot = %v, want %v", l.Snapshot(), want)
	}

	if !l.Allows("g1@g.us") || l.Allows("g3@g.us") {
		t.Fatal("non-empty whitelist must allow only its members")
	}
}

func TestReplaceCanClear(t *testing.T) {
	t.Parallel()
	l := New()
	l.Replace([]string{"g1@g.us"})
	l.Replace(nil)
	if !l.Allows("g9@g.us") {
		t.Fatal("cleared whitelist must allow all groups again")
	}
}
