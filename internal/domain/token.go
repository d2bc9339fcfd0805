package domain

import "time"

// Token identifies a tradable asset launched through the bonding-curve
// contract. Tokens are created at launch time by an external collaborator;
// the pipeline only reads them and toggles IsActive.
type Token struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	ContractReference string    `json:"contractReference"` // contract principal, e.g. "SP...bondingcurvestxfun"
	ChainID           uint64    `json:"chainId"`           // token index inside the contract, used for calls
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
}
