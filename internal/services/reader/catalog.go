package reader

import (
	"fmt"

	"AShareData/internal/services/factor"
)

// ValueType is the Go type a factor's cells decode to.
type ValueType string

const (
	Float  ValueType = "float"
	String ValueType = "string"
	Bool   ValueType = "bool"
)

// Binding names a factor and ties it to a layout, table and column.
type Binding struct {
	Name   string      `json:"name"`
	Kind   factor.Kind `json:"kind"`
	Type   ValueType   `json:"type"`
	Table  string      `json:"table"`
	Column string      `json:"column,omitempty"`
}

const (
	SecName        = "sec_name"
	AdjFactor      = "adj_factor"
	FreeAShares    = "free_a_shares"
	TotalShares    = "total_shares"
	FloatingShares = "floating_shares"
	ConstLimit     = "const_limit"
	ClosePrice     = "close"
)

// DefaultCatalog is the built-in set of factors.
func DefaultCatalog() []Binding {
	return []Binding{
		{Name: SecName, Kind: factor.Compact, Type: String, Table: "sec_name", Column: "sec_name"},
		{Name: AdjFactor, Kind: factor.Compact, Type: Float, Table: "adj_factor", Column: "adj_factor"},
		{Name: FreeAShares, Kind: factor.Compact, Type: Float, Table: "free_a_shares", Column: "free_a_shares"},
		{Name: TotalShares, Kind: factor.Compact, Type: Float, Table: "total_shares", Column: "total_shares"},
		{Name: FloatingShares, Kind: factor.Compact, Type: Float, Table: "floating_shares", Column: "floating_shares"},
		{Name: ConstLimit, Kind: factor.OnTheRecord, Type: Bool, Table: "const_limit"},
		{Name: ClosePrice, Kind: factor.Continuous, Type: Float, Table: "stock_daily", Column: "close"},
	}
}

func (b Binding) validate() error {
	if b.Name == "" || b.Table == "" {
		return fmt.Errorf("binding needs name and table")
	}
	switch b.Kind {
	case factor.Compact, factor.Continuous:
		if b.Column == "" {
			return fmt.Errorf("binding %s: %s needs a column", b.Name, b.Kind)
		}
	case factor.OnTheRecord:
		if b.Type != Bool {
			return fmt.Errorf("binding %s: on_the_record must be bool, got %q", b.Name, b.Type)
		}
	default:
		return fmt.Errorf("binding %s: %s", b.Name, b.Kind)
	}
	switch b.Type {
	case Float, String, Bool:
	default:
		return fmt.Errorf("binding %s: unknown type %q", b.Name, b.Type)
	}
	return nil
}
