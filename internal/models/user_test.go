package models

import "testing"

func TestPhoneFromContactID(t *testing.T) {
	cases := []struct {
		contactID string
		want      string
	}{
		{"59170000001@s.whatsapp.net", "59170000001"},
		{"59170000001:12@s.whatsapp.net", "59170000001"},
		{"59170000001", "59170000001"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := PhoneFromContactID(tc.contactID); got != tc.want {
			t.Errorf("PhoneFromContactID(%q) = %q, want %q", tc.contactID, got, tc.want)
		}
	}
}
