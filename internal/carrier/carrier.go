package carrier

import (
	"fmt"
	"sort"
)

// Codes maps the abstract tracking event kinds onto the code vocabulary
// of a specific carrier.
type Codes struct {
	Shipped       string
	InTransit     string
	ToBeDelivered string
	Delivered     string
}

type Carrier struct {
	ID     string
	APIKey string
	Codes  Codes
}

// codeTable is the fixed set of supported carriers, keyed by
// delivery_method_id. Orders quoted against any other method stall until
// remapped here.
var codeTable = map[string]Codes{
	"32":   {Shipped: "98", InTransit: "98", ToBeDelivered: "31", Delivered: "01"},
	"4":    {Shipped: "101", InTransit: "101", ToBeDelivered: "182", Delivered: "01"},
	"177":  {Shipped: "098", InTransit: "098", ToBeDelivered: "31", Delivered: "001"},
	"51":   {Shipped: "18", InTransit: "18", ToBeDelivered: "31", Delivered: "35"},
	"3363": {Shipped: "98", InTransit: "98", ToBeDelivered: "31", Delivered: "01"},
	"23":   {Shipped: "98", InTransit: "98", ToBeDelivered: "101", Delivered: "01"},
}

// IDs returns the configured delivery method ids in stable order.
func IDs() []string {
	ids := make([]string, 0, len(codeTable))
	for id := range codeTable {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Table is the immutable carrier configuration built once at startup.
type Table struct {
	carriers map[string]Carrier
}

// NewTable binds one API key per configured carrier. Every carrier in the
// code table must have a key.
func NewTable(apiKeys map[string]string) (*Table, error) {
	carriers := make(map[string]Carrier, len(codeTable))
	for id, codes := range codeTable {
		key, ok := apiKeys[id]
		if !ok || key == "" {
			return nil, fmt.Errorf("missing API key for carrier %s", id)
		}
		carriers[id] = Carrier{ID: id, APIKey: key, Codes: codes}
	}
	return &Table{carriers: carriers}, nil
}

// Lookup resolves a delivery method id to its carrier record. The second
// return value is false for unmapped methods.
func (t *Table) Lookup(deliveryMethodID string) (Carrier, bool) {
	c, ok := t.carriers[deliveryMethodID]
	return c, ok
}
