// Package source names the five spreadsheet exports the reconciliation run
// consumes: their tags, archive entry names and the raw columns the pipeline
// keys on.
package source

import "github.com/franz/order-recon/internal/table"

// Tag identifies a source table. It is appended to every column name.
type Tag string

const (
	Orders     Tag = "ORDERS"
	Inventory  Tag = "INVENTORY"
	Status     Tag = "STATUS"
	Pricing    Tag = "PRICING"
	Management Tag = "MANAGEMENT"
)

// Definition describes one expected archive entry
type Definition struct {
	Tag      Tag
	FileName string
	Required bool
}

// Definitions lists the sources in join order, primary first
var Definitions = []Definition{
	{Tag: Orders, FileName: "ORDENES.xlsx", Required: true},
	{Tag: Inventory, FileName: "INVENTARIO.xlsx"},
	{Tag: Status, FileName: "ESTADO.xlsx"},
	{Tag: Pricing, FileName: "PRECIOS.xlsx"},
	{Tag: Management, FileName: "GESTION.xlsx"},
}

// ByFileName returns the definition for an archive entry name
func ByFileName(name string) (Definition, bool) {
	for _, d := range Definitions {
		if d.FileName == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Raw column names as they appear in the exports
const (
	ColReqDate     = "LRDTE"
	ColProduct     = "LPROD"
	ColOrder       = "LORD"
	ColLine        = "LLINE"
	ColCustomer    = "HNAME"
	ColQtyOrdered  = "LQORD"
	ColInvProduct  = "Cod. Producto"
	ColPrice       = "VALOR"
	ColOnHand      = "On Hand"
	ColResponsible = "RESPONSABLE"
)

// Derived column names
const (
	ColDaysLeft   = "CONTROL_DIAS"
	ColValueTotal = "VALUE_TOTAL"
)

// Column returns the namespaced form of a raw column
func Column(raw string, tag Tag) string {
	return raw + "_" + string(tag)
}

// Set holds the parsed source tables of one upload, keyed by tag
type Set map[Tag]*table.Table

// Present lists the tags in the set in join order
func (s Set) Present() []Tag {
	var tags []Tag
	for _, d := range Definitions {
		if _, ok := s[d.Tag]; ok {
			tags = append(tags, d.Tag)
		}
	}
	return tags
}
