// Package model defines the records that flow through the MC extraction pipeline.
package model

import "strconv"

// MCNumber is an FMCSA motor carrier docket number.
type MCNumber int

func (m MCNumber) String() string { return strconv.Itoa(int(m)) }

// Valid reports whether the number can name a carrier record.
func (m MCNumber) Valid() bool { return m > 0 }

// Field sentinels written when extraction yields nothing.
const (
	NotAvailable        = "Not Available"
	CompanyNameNotFound = "Company Name Not Found"
	AddressNotFound     = "Address Not Found"
	EmailNotFound       = "Email Not Found"
	PhoneNotFound       = "Phone Not Found"
)

// ContactRecord holds the contact fields read from a carrier's registration page.
// Address may contain line breaks; sinks normalize it.
type ContactRecord struct {
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// EmptyContact returns a record with every field set to NotAvailable.
func EmptyContact() ContactRecord {
	return ContactRecord{
		CompanyName: NotAvailable,
		Address:     NotAvailable,
		Email:       NotAvailable,
		Phone:       NotAvailable,
	}
}

// Extraction is what the SAFER pipeline produces for one MC number: either a
// gate failure, or a contact record once every gate passed.
type Extraction struct {
	Gate    GateResult     `json:"gate"`
	Contact *ContactRecord `json:"contact,omitempty"`
}
