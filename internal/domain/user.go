package domain

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName,omitempty"`
	LastName  string  `json:"lastName,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Address   Address `json:"address"`
	Orders    []Order `json:"orders"`
}

// Profile is the part of a User the shopper can edit.
type Profile struct {
	FirstName string  `json:"firstName,omitempty"`
	LastName  string  `json:"lastName,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Address   Address `json:"address"`
}

// ProfilePatch is a profile as the backend returns it. A nil field was absent
// from the response and leaves the stored value alone.
type ProfilePatch struct {
	FirstName *string       `json:"firstName"`
	LastName  *string       `json:"lastName"`
	Phone     *string       `json:"phone"`
	Address   *AddressPatch `json:"address"`
}

type AddressPatch struct {
	Street     *string `json:"street"`
	City       *string `json:"city"`
	PostalCode *string `json:"postalCode"`
	Country    *string `json:"country"`
}

// Patch returns a patch that sets every field of p.
func (p Profile) Patch() ProfilePatch {
	return ProfilePatch{
		FirstName: &p.FirstName,
		LastName:  &p.LastName,
		Phone:     &p.Phone,
		Address: &AddressPatch{
			Street:     &p.Address.Street,
			City:       &p.Address.City,
			PostalCode: &p.Address.PostalCode,
			Country:    &p.Address.Country,
		},
	}
}

// ApplyPatch copies the fields present in p. ID, Email and Orders are never touched.
func (u *User) ApplyPatch(p ProfilePatch) {
	setString(&u.FirstName, p.FirstName)
	setString(&u.LastName, p.LastName)
	setString(&u.Phone, p.Phone)
	if a := p.Address; a != nil {
		setString(&u.Address.Street, a.Street)
		setString(&u.Address.City, a.City)
		setString(&u.Address.PostalCode, a.PostalCode)
		setString(&u.Address.Country, a.Country)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
