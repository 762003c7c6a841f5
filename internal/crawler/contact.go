package crawler

import "strings"

// MergeContacts combines the company-contacts candidate (primary) with the
// in-page panel candidate (secondary). Website, phone and email fall back to
// the secondary source; name and position only ever come from the primary.
func MergeContacts(primary, secondary ContactCandidate) ContactCandidate {
	primary = primary.Normalize()
	secondary = secondary.Normalize()
	return ContactCandidate{
		Website:  firstAvailable(primary.Website, secondary.Website),
		FullName: primary.FullName,
		Position: primary.Position,
		Phone:    firstAvailable(primary.Phone, secondary.Phone),
		Email:    firstAvailable(primary.Email, secondary.Email),
	}
}

// SplitName derives first and last name from a full name. The first token is
// the first name and the remaining tokens, joined by one space, the last name.
func SplitName(fullName string) (first, last string) {
	if IsSentinel(fullName) {
		return Sentinel, Sentinel
	}
	parts := strings.Fields(fullName)
	if len(parts) == 1 {
		return parts[0], Sentinel
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// ApplyContact copies a merged candidate into the record's contact fields.
func (r JobRecord) ApplyContact(c ContactCandidate) JobRecord {
	c = c.Normalize()
	r.CompanyWebsite = c.Website
	r.ContactFullName = c.FullName
	r.ContactFirstName, r.ContactLastName = SplitName(c.FullName)
	r.ContactPosition = c.Position
	r.ContactPhone = c.Phone
	r.ContactEmail = c.Email
	return r
}

func firstAvailable(values ...string) string {
	for _, v := range values {
		if !IsSentinel(v) {
			return strings.TrimSpace(v)
		}
	}
	return Sentinel
}
