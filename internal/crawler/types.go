package crawler

import (
	"strings"
	"time"
)

// Sentinel marks a field that could not be extracted.
const Sentinel = "N/A"

// Platform is the constant source platform written with every record.
const Platform = "Stepstone"

// Header is the fixed, ordered column set of the output store.
var Header = []string{
	"Job Title",
	"Employment Type",
	"Location",
	"Company Name",
	"Company Website",
	"Contact Full Name",
	"Contact First Name",
	"Contact Last Name",
	"Contact Position",
	"Contact Phone",
	"Contact Email",
	"Platform",
	"Job Listing Timestamp",
	"Scraping Timestamp",
	"Job ID",
}

// TimestampLayout is used for both timestamp columns.
const TimestampLayout = time.RFC3339

// JobRecord is the unit of output, one per successfully extracted listing.
type JobRecord struct {
	Title            string    `json:"title"`
	EmploymentType   string    `json:"employment_type"`
	Location         string    `json:"location"`
	CompanyName      string    `json:"company_name"`
	CompanyWebsite   string    `json:"company_website"`
	ContactFullName  string    `json:"contact_full_name"`
	ContactFirstName string    `json:"contact_first_name"`
	ContactLastName  string    `json:"contact_last_name"`
	ContactPosition  string    `json:"contact_position"`
	ContactPhone     string    `json:"contact_phone"`
	ContactEmail     string    `json:"contact_email"`
	Platform         string    `json:"platform"`
	ListedAt         time.Time `json:"listed_at"`
	ScrapedAt        time.Time `json:"scraped_at"`
	ID               string    `json:"id"`
	SourceURL        string    `json:"source_url"`
}

// Normalize returns a copy in which every text field is trimmed and empty
// values are replaced by the Sentinel.
func (r JobRecord) Normalize() JobRecord {
	r.Title = OrSentinel(r.Title)
	r.EmploymentType = OrSentinel(r.EmploymentType)
	r.Location = OrSentinel(r.Location)
	r.CompanyName = OrSentinel(r.CompanyName)
	r.CompanyWebsite = OrSentinel(r.CompanyWebsite)
	r.ContactFullName = OrSentinel(r.ContactFullName)
	r.ContactFirstName = OrSentinel(r.ContactFirstName)
	r.ContactLastName = OrSentinel(r.ContactLastName)
	r.ContactPosition = OrSentinel(r.ContactPosition)
	r.ContactPhone = OrSentinel(r.ContactPhone)
	r.ContactEmail = OrSentinel(r.ContactEmail)
	r.Platform = OrSentinel(r.Platform)
	r.ID = OrSentinel(r.ID)
	return r
}

// Row renders the record as an output row in Header order.
func (r JobRecord) Row() []string {
	n := r.Normalize()
	return []string{
		n.Title,
		n.EmploymentType,
		n.Location,
		n.CompanyName,
		n.CompanyWebsite,
		n.ContactFullName,
		n.ContactFirstName,
		n.ContactLastName,
		n.ContactPosition,
		n.ContactPhone,
		n.ContactEmail,
		n.Platform,
		formatTimestamp(n.ListedAt),
		formatTimestamp(n.ScrapedAt),
		n.ID,
	}
}

// ContactCandidate is one source's view of the contact fields before merge.
type ContactCandidate struct {
	Website  string
	FullName string
	Position string
	Phone    string
	Email    string
}

// EmptyContact returns a candidate whose fields are all the Sentinel.
func EmptyContact() ContactCandidate {
	return ContactCandidate{
		Website:  Sentinel,
		FullName: Sentinel,
		Position: Sentinel,
		Phone:    Sentinel,
		Email:    Sentinel,
	}
}

// Normalize replaces blank fields with the Sentinel.
func (c ContactCandidate) Normalize() ContactCandidate {
	return ContactCandidate{
		Website:  OrSentinel(c.Website),
		FullName: OrSentinel(c.FullName),
		Position: OrSentinel(c.Position),
		Phone:    OrSentinel(c.Phone),
		Email:    OrSentinel(c.Email),
	}
}

// FetchOptions are forwarded to the remote fetch service.
type FetchOptions struct {
	RenderJS     bool
	PremiumProxy bool
	CountryCode  string
}

// FetchRequest captures a single outbound fetch.
type FetchRequest struct {
	URL     string
	Options *FetchOptions
}

// FetchResponse is the raw document returned by a Fetcher.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// BatchResult summarizes one fan-out/fan-in batch.
type BatchResult struct {
	Dispatched int
	Succeeded  int
	Failed     int
	SinkErrors int
}

// Add accumulates another batch into r.
func (r *BatchResult) Add(other BatchResult) {
	r.Dispatched += other.Dispatched
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.SinkErrors += other.SinkErrors
}

// OrSentinel trims s and substitutes the Sentinel for an empty value.
func OrSentinel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sentinel
	}
	return s
}

// IsSentinel reports whether s carries no real value.
func IsSentinel(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == Sentinel
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return Sentinel
	}
	return t.Format(TimestampLayout)
}
