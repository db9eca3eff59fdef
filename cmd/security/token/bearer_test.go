package token

import "testing"

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"1", ""},
		{"Bearer", ""},
		{"Bearer ", ""},
		{"Bearer    ", ""},
		{"Unknown abc", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"BEARER  abc  ", "abc"},
		{"Bearer 1", "1"},
	}
	for _, tc := range cases {
		if got := BearerToken(tc.in); got != tc.want {
			t.Fatalf("BearerToken(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestAuthorizationHeader_RoundTrip(t *testing.T) {
	t.Parallel()

	if got := BearerToken(AuthorizationHeader("tok")); got != "tok" {
		t.Fatalf("round trip=%q", got)
	}
}
