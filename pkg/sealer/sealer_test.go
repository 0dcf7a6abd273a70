package sealer

import "testing"

func TestOpaqueTokenRoundTrip(t *testing.T) {
	token, err := CreateOpaqueToken("665f1f77bcf86cd799439011", "665f1f77bcf86cd799439022")
	if err != nil {
		t.Fatalf("CreateOpaqueToken: %v", err)
	}

	consultationID, recipientID, err := ParseOpaqueToken(token)
	if err != nil {
		t.Fatalf("ParseOpaqueToken: %v", err)
	}
	if consultationID != "665f1f77bcf86cd799439011" {
		t.Errorf("consultation ID = %s", consultationID)
	}
	if recipientID != "665f1f77bcf86cd799439022" {
		t.Errorf("recipient ID = %s", recipientID)
	}
}

func TestParseOpaqueTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "!!!", "c2hvcnQ", "c2hvcnQtYnV0LXZhbGlkLWJhc2U2NA"} {
		if _, _, err := ParseOpaqueToken(token); err == nil {
			t.Errorf("expected error for token %q", token)
		}
	}
}

func TestTokensAreNotDeterministic(t *testing.T) {
	a, err := CreateOpaqueToken("665f1f77bcf86cd799439011", "665f1f77bcf86cd799439022")
	if err != nil {
		t.Fatal(err)
	}
	b, err := CreateOpaqueToken("665f1f77bcf86cd799439011", "665f1f77bcf86cd799439022")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two tokens for the same consultation should not match")
	}
}
