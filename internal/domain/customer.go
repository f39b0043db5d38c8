package domain

// CustomerIdentity is a read-only projection supplied by the customer data
// system of record. The screening core never mutates it.
type CustomerIdentity struct {
	CustomerID  string
	DisplayName string
	Address     string
	City        string
	Country     string
}
