// Package model defines the domain types shared across the validation pipeline.
package model

import "strings"

// Canonical provider field names, in presentation order. Conflict detection,
// completeness scoring, and golden record assembly all iterate this list so
// that output ordering is stable across runs.
const (
	FieldFullName      = "full_name"
	FieldNPI           = "npi"
	FieldAddress       = "address"
	FieldCity          = "city"
	FieldState         = "state"
	FieldZipCode       = "zip_code"
	FieldPhone         = "phone"
	FieldSpecialty     = "specialty"
	FieldLicenseNumber = "license_number"
	FieldWebsite       = "website"
	FieldLastUpdated   = "last_updated"
)

// ProviderFields lists every canonical field in fixed order.
var ProviderFields = []string{
	FieldFullName,
	FieldNPI,
	FieldAddress,
	FieldCity,
	FieldState,
	FieldZipCode,
	FieldPhone,
	FieldSpecialty,
	FieldLicenseNumber,
	FieldWebsite,
	FieldLastUpdated,
}

// NormalizedProvider is the canonical input record. All fields are strings;
// absent fields are empty, never null. Immutable once constructed.
type NormalizedProvider struct {
	FullName      string `json:"full_name"`
	NPI           string `json:"npi"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	Phone         string `json:"phone"`
	Specialty     string `json:"specialty"`
	LicenseNumber string `json:"license_number"`
	Website       string `json:"website"`
	LastUpdated   string `json:"last_updated"`
}

// fieldAliases maps accepted input field-name variants, lowercased with
// separators stripped, to canonical names.
var fieldAliases = map[string]string{
	"fullname":        FieldFullName,
	"name":            FieldFullName,
	"providername":    FieldFullName,
	"npi":             FieldNPI,
	"npiid":           FieldNPI,
	"address":         FieldAddress,
	"practiceaddress": FieldAddress,
	"city":            FieldCity,
	"state":           FieldState,
	"zipcode":         FieldZipCode,
	"zip":             FieldZipCode,
	"phone":           FieldPhone,
	"phonenumber":     FieldPhone,
	"specialty":       FieldSpecialty,
	"speciality":      FieldSpecialty,
	"licensenumber":   FieldLicenseNumber,
	"license":         FieldLicenseNumber,
	"website":         FieldWebsite,
	"url":             FieldWebsite,
	"lastupdated":     FieldLastUpdated,
}

// NormalizeProvider maps arbitrary input field-name variants (full_name,
// fullName, zip_code, zipCode, license, ...) onto a canonical provider record.
// Unknown keys are ignored, missing fields default to empty strings, and the
// first non-empty value wins when variants collide.
func NormalizeProvider(raw map[string]string) NormalizedProvider {
	fields := make(map[string]string, len(ProviderFields))
	for key, value := range raw {
		canonical, ok := fieldAliases[canonicalKey(key)]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = value
		}
	}

	return NormalizedProvider{
		FullName:      fields[FieldFullName],
		NPI:           fields[FieldNPI],
		Address:       fields[FieldAddress],
		City:          fields[FieldCity],
		State:         fields[FieldState],
		ZipCode:       fields[FieldZipCode],
		Phone:         fields[FieldPhone],
		Specialty:     fields[FieldSpecialty],
		LicenseNumber: fields[FieldLicenseNumber],
		Website:       fields[FieldWebsite],
		LastUpdated:   fields[FieldLastUpdated],
	}
}

// canonicalKey lowercases a raw input key and strips separators so that
// "Full Name", "full-name" and "fullName" all normalize to "fullname".
func canonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, sep := range []string{" ", "-", "_"} {
		key = strings.ReplaceAll(key, sep, "")
	}
	return key
}

// Field returns the value of a canonical field by name.
func (p NormalizedProvider) Field(name string) string {
	switch name {
	case FieldFullName:
		return p.FullName
	case FieldNPI:
		return p.NPI
	case FieldAddress:
		return p.Address
	case FieldCity:
		return p.City
	case FieldState:
		return p.State
	case FieldZipCode:
		return p.ZipCode
	case FieldPhone:
		return p.Phone
	case FieldSpecialty:
		return p.Specialty
	case FieldLicenseNumber:
		return p.LicenseNumber
	case FieldWebsite:
		return p.Website
	case FieldLastUpdated:
		return p.LastUpdated
	default:
		return ""
	}
}

// NonEmptyFields returns how many canonical fields carry a value.
func (p NormalizedProvider) NonEmptyFields() int {
	n := 0
	for _, f := range ProviderFields {
		if p.Field(f) != "" {
			n++
		}
	}
	return n
}
