package crawler

// Selectors holds the site-specific CSS selectors. They are constants of the
// listings site and only change when its markup does.
type Selectors struct {
	ListingLink     string
	PaginationItems string

	Title          string
	EmploymentType string
	Location       string
	CompanyName    string
	CompanyLink    string
	PostedAt       string

	CookieAccept   string
	LoginOverlay   string
	MoreInfo       string
	AdditionalInfo string

	ContactName     string
	ContactPosition string
	ContactPhone    string
	ContactEmail    string
}

// DefaultSelectors returns the selectors for the StepStone markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ListingLink:     "a.res-1foik6i[href]",
		PaginationItems: `nav[aria-label="pagination"] li`,

		Title:          "h1",
		EmploymentType: ".at-listing__list-icons_work-type",
		Location:       ".at-listing__list-icons_location",
		CompanyName:    ".at-listing__list-icons_company-name",
		CompanyLink:    ".at-listing__list-icons_company-name a",
		PostedAt:       ".at-listing__list-icons_date",

		CookieAccept:   "#ccmgt_explicit_accept",
		LoginOverlay:   ".lpca-login-registration-components-rgcrz1",
		MoreInfo:       `[data-at="rebranded-version"] [role="button"]`,
		AdditionalInfo: ".at-section-text-additionalInformation",

		ContactName:     "span.at-contact-name",
		ContactPosition: "span.at-contact-position",
		ContactPhone:    "a.at-contact-phone",
		ContactEmail:    "a.at-contact-email",
	}
}

// StepResult is the outcome of an optional page interaction.
type StepResult int

// Optional step outcomes. NotFound and Failed both mean "continue without it".
const (
	StepPerformed StepResult = iota
	StepNotFound
	StepFailed
)

func (r StepResult) String() string {
	switch r {
	case StepPerformed:
		return "performed"
	case StepNotFound:
		return "not_found"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}
