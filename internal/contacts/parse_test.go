package contacts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

const companyPage = `<html><body>
<ul class="company-links">
  <li><a href="https://www.acme.example">Website</a></li>
  <li><a href="https://jobs.acme.example">Careers</a></li>
</ul>
<ul><li><a href="/other">Other</a></li></ul>
<div class="contact">
  <span class="at-contact-name"> Anna Maria Schmidt </span>
  <span class="at-contact-position">HR Lead</span>
  <a class="at-contact-phone" href="tel:+4930123456">+49 30 123456</a>
  <a class="at-contact-email" href="mailto:anna@acme.example?subject=Job">Write us</a>
</div>
</body></html>`

func TestParseCompanyContacts(t *testing.T) {
	t.Parallel()

	got, err := ParseCompanyContacts(companyPage, crawler.DefaultSelectors())
	require.NoError(t, err)
	require.Equal(t, crawler.ContactCandidate{
		Website:  "https://www.acme.example",
		FullName: "Anna Maria Schmidt",
		Position: "HR Lead",
		Phone:    "+49 30 123456",
		Email:    "anna@acme.example",
	}, got)
}

func TestParseCompanyContactsMissingFields(t *testing.T) {
	t.Parallel()

	got, err := ParseCompanyContacts(`<html><body><p>Nothing here</p></body></html>`, crawler.DefaultSelectors())
	require.NoError(t, err)
	require.Equal(t, crawler.EmptyContact(), got)
}

func TestParseAdditionalInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fragment string
		want     crawler.ContactCandidate
	}{
		{
			name: "anchors",
			fragment: `<p>Kontakt: <a href="tel:0301234567">030 1234567</a>
				<a href="mailto:jobs@acme.example">E-Mail</a>
				<a href="https://www.acme.example/karriere">Karriere</a></p>`,
			want: crawler.ContactCandidate{
				Website:  "https://www.acme.example/karriere",
				FullName: crawler.Sentinel,
				Position: crawler.Sentinel,
				Phone:    "030 1234567",
				Email:    "jobs@acme.example",
			},
		},
		{
			name: "text fallback",
			fragment: `<div><p>Fragen? Schreiben Sie an bewerbung@acme.example</p>
				<p>Telefon: +49 (0)89 123-456</p>
				<p>Mehr unter https://acme.example</p></div>`,
			want: crawler.ContactCandidate{
				Website:  "https://acme.example",
				FullName: crawler.Sentinel,
				Position: crawler.Sentinel,
				Phone:    "+49 (0)89 123-456",
				Email:    "bewerbung@acme.example",
			},
		},
		{
			name:     "mailto without address uses link text",
			fragment: `<a href="mailto:">hr@acme.example</a>`,
			want: crawler.ContactCandidate{
				Website:  crawler.Sentinel,
				FullName: crawler.Sentinel,
				Position: crawler.Sentinel,
				Phone:    crawler.Sentinel,
				Email:    "hr@acme.example",
			},
		},
		{
			name:     "nothing",
			fragment: `<p>Wir freuen uns auf Sie.</p>`,
			want:     crawler.EmptyContact(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAdditionalInfo(tc.fragment)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStripScheme(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a@b.example", stripScheme("MAILTO:a@b.example", "mailto:"))
	require.Equal(t, "a@b.example", stripScheme(" mailto:a@b.example?cc=x ", "mailto:"))
	require.Equal(t, "+491", stripScheme("tel:+491", "tel:"))
	require.Equal(t, "", stripScheme("mailto:", "mailto:"))
}

func TestVisibleTextSkipsScripts(t *testing.T) {
	t.Parallel()

	got, err := ParseAdditionalInfo(`<script>var x = "evil@script.example";</script><p>real@acme.example</p>`)
	require.NoError(t, err)
	require.Equal(t, "real@acme.example", got.Email)
}
