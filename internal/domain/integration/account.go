package integration

import "strings"

// Account selects one of the two ShipStation account contexts
type Account string

const (
	// AccountDomestic is the primary account, always configured
	AccountDomestic Account = "domestic"
	// AccountForeign is the optional account for shipments to the foreign country
	AccountForeign Account = "foreign"
)

// IsValid returns true if the account is known
func (a Account) IsValid() bool {
	switch a {
	case AccountDomestic, AccountForeign:
		return true
	default:
		return false
	}
}

// String returns the string representation of Account
func (a Account) String() string {
	return string(a)
}

// Label returns the operator-facing label for the account
func (a Account) Label() string {
	switch a {
	case AccountDomestic:
		return "US"
	case AccountForeign:
		return "CA"
	default:
		return string(a)
	}
}

// ParseAccount accepts selector names and labels ("domestic", "us", "foreign", "ca")
func ParseAccount(s string) (Account, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domestic", "us", "shipstation":
		return AccountDomestic, true
	case "foreign", "ca", "shipstation_ca":
		return AccountForeign, true
	default:
		return "", false
	}
}

// RoutingPolicy decides which account an order is submitted to
type RoutingPolicy struct {
	// ForeignCountry is the ship-to country code routed to the foreign account
	ForeignCountry string
	// ForeignConfigured is false when the foreign account has no credentials
	ForeignConfigured bool
}

// Route returns the destination account for a ship-to country code
func (p RoutingPolicy) Route(country string) Account {
	if p.ForeignConfigured && p.ForeignCountry != "" &&
		strings.EqualFold(strings.TrimSpace(country), p.ForeignCountry) {
		return AccountForeign
	}
	return AccountDomestic
}
