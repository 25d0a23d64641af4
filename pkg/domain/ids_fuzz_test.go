package domain

import (
	"strings"
	"testing"
)

func FuzzParseListingID(f *testing.F) {
	for _, seed := range []string{
		"",
		"not-a-uuid",
		"00000000-0000-0000-0000-000000000000",
		"6f1c2a9e-4b7d-4e21-9a35-0c8d7e5f1b42",
		"6F1C2A9E-4B7D-4E21-9A35-0C8D7E5F1B42",
		"urn:uuid:6f1c2a9e-4b7d-4e21-9a35-0c8d7e5f1b42",
		"6f1c2a9e-4b7d-4e21-9a35-0c8d7e5f1b42\x00",
		"../../listings",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		listingID, err := ParseListingID(raw)
		if err != nil {
			if !listingID.IsNil() {
				t.Fatalf("failed parse of %q returned %s", raw, listingID)
			}
			return
		}
		if listingID.IsNil() {
			t.Fatalf("nil listing ID accepted from %q", raw)
		}
		canonical := listingID.String()
		if canonical != strings.ToLower(canonical) {
			t.Fatalf("String() is not lower case: %s", canonical)
		}
		again, err := ParseListingID(canonical)
		if err != nil || again != listingID {
			t.Fatalf("canonical form %s does not parse back: %v", canonical, err)
		}
	})
}

// FuzzParsersAgree checks every ID parser accepts the same inputs.
func FuzzParsersAgree(f *testing.F) {
	f.Add("6f1c2a9e-4b7d-4e21-9a35-0c8d7e5f1b42")
	f.Add("")
	f.Add("listing-42")

	f.Fuzz(func(t *testing.T, raw string) {
		_, userErr := ParseUserID(raw)
		_, listingErr := ParseListingID(raw)
		_, recordErr := ParseRecordID(raw)
		if (userErr == nil) != (listingErr == nil) || (listingErr == nil) != (recordErr == nil) {
			t.Fatalf("parsers disagree on %q: user=%v listing=%v record=%v", raw, userErr, listingErr, recordErr)
		}
	})
}
