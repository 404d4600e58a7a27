package domain

import (
	"testing"
)

// FuzzParseUserID checks parsing never panics and keeps round-trips stable.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE profiles;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err != nil {
			return
		}

		// A successfully parsed ID must round-trip unchanged.
		roundTrip, err2 := ParseUserID(id.String())
		if err2 != nil {
			t.Errorf("valid ID failed round-trip: %v", err2)
		}
		if roundTrip != id {
			t.Error("round-trip changed ID value")
		}
	})
}
