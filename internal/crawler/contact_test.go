package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeContactsPrecedence(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		primary   string
		secondary string
		want      string
	}{
		{"primary wins", "https://primary.example", "https://secondary.example", "https://primary.example"},
		{"secondary fills gap", Sentinel, "https://secondary.example", "https://secondary.example"},
		{"both missing", Sentinel, Sentinel, Sentinel},
		{"blank primary treated as missing", "  ", "https://secondary.example", "https://secondary.example"},
		{"primary only", "https://primary.example", Sentinel, "https://primary.example"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// The same law holds independently for website, phone and email.
			merged := MergeContacts(
				ContactCandidate{Website: tc.primary, Phone: tc.primary, Email: tc.primary},
				ContactCandidate{Website: tc.secondary, Phone: tc.secondary, Email: tc.secondary},
			)
			require.Equal(t, tc.want, merged.Website)
			require.Equal(t, tc.want, merged.Phone)
			require.Equal(t, tc.want, merged.Email)
		})
	}
}

func TestMergeContactsFieldsIndependent(t *testing.T) {
	t.Parallel()

	merged := MergeContacts(
		ContactCandidate{Website: "https://acme.example", Phone: Sentinel, Email: Sentinel, FullName: "Jane Doe", Position: "HR"},
		ContactCandidate{Website: "https://other.example", Phone: "+49 30 1234567", Email: Sentinel, FullName: "Ignored", Position: "Ignored"},
	)
	require.Equal(t, ContactCandidate{
		Website:  "https://acme.example",
		FullName: "Jane Doe",
		Position: "HR",
		Phone:    "+49 30 1234567",
		Email:    Sentinel,
	}, merged)
}

func TestMergeContactsNameOnlyFromPrimary(t *testing.T) {
	t.Parallel()

	merged := MergeContacts(EmptyContact(), ContactCandidate{FullName: "Panel Person", Position: "CEO"})
	require.Equal(t, Sentinel, merged.FullName)
	require.Equal(t, Sentinel, merged.Position)
}

func TestSplitName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		full  string
		first string
		last  string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Cher", "Cher", Sentinel},
		{Sentinel, Sentinel, Sentinel},
		{"", Sentinel, Sentinel},
		{"Anna  Maria   von Berg", "Anna", "Maria von Berg"},
	}
	for _, tc := range testCases {
		first, last := SplitName(tc.full)
		if first != tc.first || last != tc.last {
			t.Errorf("SplitName(%q) = (%q, %q); want (%q, %q)", tc.full, first, last, tc.first, tc.last)
		}
	}
}

func TestApplyContact(t *testing.T) {
	t.Parallel()

	rec := JobRecord{Title: "Dev"}.ApplyContact(ContactCandidate{
		Website:  "https://acme.example",
		FullName: "Jane Doe",
		Position: "Recruiter",
	})
	require.Equal(t, "https://acme.example", rec.CompanyWebsite)
	require.Equal(t, "Jane", rec.ContactFirstName)
	require.Equal(t, "Doe", rec.ContactLastName)
	require.Equal(t, "Recruiter", rec.ContactPosition)
	require.Equal(t, Sentinel, rec.ContactPhone)
	require.Equal(t, Sentinel, rec.ContactEmail)
}
