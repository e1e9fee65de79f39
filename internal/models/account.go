// Package models defines the wire types exchanged with the finchat API.
package models

import "time"

// LinkToken is a short-lived token that opens the aggregator's hosted link flow.
type LinkToken struct {
	LinkToken     string    `json:"link_token"`
	Expiration    time.Time `json:"expiration"`
	HostedLinkURL string    `json:"hosted_link_url,omitempty"`
}

// ExchangeRequest hands the public token from a successful link flow to the server.
type ExchangeRequest struct {
	PublicToken string `json:"public_token"`
}

// LinkedItem describes an institution connection created by an exchange.
type LinkedItem struct {
	ItemID          string `json:"item_id"`
	InstitutionName string `json:"institution_name,omitempty"`
}

// Account is a bank account reachable through a linked item.
type Account struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Mask           string   `json:"mask,omitempty"`
	Type           string   `json:"type"`
	Subtype        string   `json:"subtype,omitempty"`
	CurrentBalance *float64 `json:"current_balance,omitempty"`
	Currency       string   `json:"iso_currency_code,omitempty"`
}
