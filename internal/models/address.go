package models

// AddressRecord is one raw input row. All fields are optional free text.
type AddressRecord struct {
	Address string
	City    string
	State   string
	Zip     string
}
