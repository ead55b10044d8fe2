package utils

import (
	"strings"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	tok, err := IssueSessionToken("s3cret", "user-1", "u1@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}
	claims, err := ParseSessionToken("s3cret", tok)
	if err != nil {
		t.Fatalf("ParseSessionToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "u1@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseSessionTokenRejects(t *testing.T) {
	good, _ := IssueSessionToken("s3cret", "user-1", "", time.Hour)
	expired, _ := IssueSessionToken("s3cret", "user-1", "", -time.Minute)
	anonymous, _ := IssueSessionToken("s3cret", "", "", time.Hour)

	cases := map[string]struct{ secret, token string }{
		"wrong secret": {"other", good},
		"expired":      {"s3cret", expired},
		"no subject":   {"s3cret", anonymous},
		"garbage":      {"s3cret", "not.a.jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSessionToken(tc.secret, tc.token); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize(`  Behind the <b>library</b><script>alert(1)</script>  `)
	if strings.Contains(got, "<script>") {
		t.Errorf("script survived: %q", got)
	}
	if !strings.Contains(got, "<b>library</b>") {
		t.Errorf("safe markup dropped: %q", got)
	}
}
