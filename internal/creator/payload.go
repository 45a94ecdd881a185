package creator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/cep"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
)

type endCustomer struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Cellphone         string `json:"cellphone"`
	IsCompany         bool   `json:"is_company"`
	FederalTaxPayerID string `json:"federal_tax_payer_id"`
	ShippingCountry   string `json:"shipping_country"`
	ShippingState     string `json:"shipping_state"`
	ShippingCity      string `json:"shipping_city"`
	ShippingAddress   string `json:"shipping_address"`
	ShippingNumber    string `json:"shipping_number"`
	ShippingQuarter   string `json:"shipping_quarter"`
	ShippingZipCode   string `json:"shipping_zip_code"`
}

type volumeInvoice struct {
	InvoiceSeries        string `json:"invoice_series"`
	InvoiceNumber        string `json:"invoice_number"`
	InvoiceKey           string `json:"invoice_key"`
	InvoiceDate          string `json:"invoice_date"`
	InvoiceTotalValue    string `json:"invoice_total_value"`
	InvoiceProductsValue string `json:"invoice_products_value"`
	InvoiceCFOP          string `json:"invoice_cfop"`
}

type orderVolume struct {
	VolumeNumber    int           `json:"shipment_order_volume_number"`
	VolumeTypeCode  string        `json:"volume_type_code"`
	Weight          float64       `json:"weight"`
	Width           int           `json:"width"`
	Height          int           `json:"height"`
	Length          int           `json:"length"`
	ProductsQty     int           `json:"products_quantity"`
	ProductsNature  string        `json:"products_nature"`
	VolumeInvoice   volumeInvoice `json:"shipment_order_volume_invoice"`
}

type orderPayload struct {
	QuoteID               string        `json:"quote_id"`
	DeliveryMethodID      string        `json:"delivery_method_id"`
	OrderNumber           string        `json:"order_number"`
	OriginWarehouseCode   string        `json:"origin_warehouse_code"`
	SalesChannel          string        `json:"sales_channel"`
	Created               string        `json:"created"`
	ShippedDate           string        `json:"shipped_date"`
	EndCustomer           endCustomer   `json:"end_customer"`
	Volumes               []orderVolume `json:"shipment_order_volume_array"`
	EstimatedDeliveryDate string        `json:"estimated_delivery_date"`
}

type volumeSpec struct {
	Weight    float64
	Width     int
	Height    int
	Length    int
	GoodsCost float64
}

func (c *Creator) buildOrderPayload(orderNumber, warehouseCode string, created, estimated time.Time, option intelipost.DeliveryOption, addr *cep.Address, vol volumeSpec, quote *intelipost.QuoteContent) orderPayload {
	shippingCost := option.ProviderShippingCost
	createdISO := created.Format(time.RFC3339)

	return orderPayload{
		QuoteID:             quote.ID.String(),
		DeliveryMethodID:    option.DeliveryMethodID.String(),
		OrderNumber:         orderNumber,
		OriginWarehouseCode: warehouseCode,
		SalesChannel:        "Marketplace",
		Created:             createdISO,
		ShippedDate:         createdISO,
		EndCustomer: endCustomer{
			FirstName:         c.faker.FirstName(),
			LastName:          c.faker.LastName(),
			Email:             c.faker.Email(),
			Phone:             c.faker.Phone(),
			Cellphone:         c.faker.Phone(),
			IsCompany:         false,
			FederalTaxPayerID: generateCPF(c.rnd),
			ShippingCountry:   "Brasil",
			ShippingState:     addr.State,
			ShippingCity:      addr.City,
			ShippingAddress:   addr.Street,
			ShippingNumber:    fmt.Sprintf("%d", 1+c.rnd.Intn(9999)),
			ShippingQuarter:   addr.Neighborhood,
			ShippingZipCode:   strings.ReplaceAll(addr.CEP, "-", ""),
		},
		Volumes: []orderVolume{{
			VolumeNumber:   1,
			VolumeTypeCode: "BOX",
			Weight:         vol.Weight,
			Width:          vol.Width,
			Height:         vol.Height,
			Length:         vol.Length,
			ProductsQty:    1,
			ProductsNature: "products",
			VolumeInvoice: volumeInvoice{
				InvoiceSeries:        "1",
				InvoiceNumber:        fmt.Sprintf("%d", 1000+c.rnd.Intn(99000)),
				InvoiceKey:           randomDigits(c.rnd, 44),
				InvoiceDate:          createdISO,
				InvoiceTotalValue:    fmt.Sprintf("%.2f", vol.GoodsCost+shippingCost),
				InvoiceProductsValue: fmt.Sprintf("%.2f", vol.GoodsCost),
				InvoiceCFOP:          "6102",
			},
		}},
		EstimatedDeliveryDate: estimated.Format(time.RFC3339),
	}
}

func randomDigits(rnd *rand.Rand, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + rnd.Intn(10)))
	}
	return sb.String()
}

// generateCPF produces a syntactically valid CPF (random base digits
// plus the two check digits).
func generateCPF(rnd *rand.Rand) string {
	digits := make([]int, 9, 11)
	for i := range digits {
		digits[i] = rnd.Intn(10)
	}
	for _, weightStart := range []int{10, 11} {
		sum := 0
		for i, d := range digits {
			sum += d * (weightStart - i)
		}
		check := 11 - sum%11
		if check >= 10 {
			check = 0
		}
		digits = append(digits, check)
	}
	var sb strings.Builder
	for _, d := range digits {
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}
