package export

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// ECS file format for the SFTP channel. The schema mirrors the carrier's
// legacy order feed.

type ecsOrders struct {
	XMLName xml.Name `xml:"Orders"`
	Orders  []ecsOrder
}

type ecsOrder struct {
	XMLName      xml.Name `xml:"Order"`
	OrderNumber  string   `xml:"OrderNumber"`
	CustomerName string   `xml:"CustomerName"`
	Street       string   `xml:"Street"`
	ZipCode      string   `xml:"ZipCode"`
	City         string   `xml:"City"`
	Country      string   `xml:"Country"`
	Email        string   `xml:"Email"`
	Phone        string   `xml:"Phone"`
	ShippingCode string   `xml:"ShippingCode"`
	Lines        ecsLines `xml:"Lines"`
}

type ecsLines struct {
	Lines []ecsLine `xml:"Line"`
}

type ecsLine struct {
	Sku         string `xml:"Sku"`
	Description string `xml:"Description"`
	Quantity    int    `xml:"Quantity"`
}

// BuildOrderXML renders one order as an ECS file. It reuses the exploded
// line set and the rule-engine code so both transports describe the same
// shipment.
func (b *Builder) BuildOrderXML(ctx context.Context, order *models.Order) ([]byte, error) {
	lines, totalWeight := b.explodeLines(order)
	if len(lines) == 0 {
		return nil, &models.ValidationError{Reason: fmt.Sprintf("order %s has no shippable lines", order.Name)}
	}

	code, ok, err := b.codes.Match(ctx, order.ShipTo.CountryCode, totalWeight)
	if err != nil {
		return nil, fmt.Errorf("product code lookup for %s: %w", order.Name, err)
	}
	if !ok {
		code = b.cfg.DefaultProductCode
	}

	xlines := make([]ecsLine, 0, len(lines))
	for _, l := range lines {
		xlines = append(xlines, ecsLine{Sku: l.SKU, Description: l.SKU, Quantity: l.Quantity})
	}

	doc := ecsOrders{Orders: []ecsOrder{{
		OrderNumber:  order.Name,
		CustomerName: order.ShipTo.Name,
		Street:       order.ShipTo.Street,
		ZipCode:      order.ShipTo.PostalCode,
		City:         order.ShipTo.City,
		Country:      order.ShipTo.CountryCode,
		Email:        order.ShipTo.Email,
		Phone:        order.ShipTo.Phone,
		ShippingCode: code,
		Lines:        ecsLines{Lines: xlines},
	}}}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal order xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Filename renders the configured Go time layout for an export file.
func Filename(pattern string, now time.Time) string {
	if pattern == "" {
		pattern = "orders_20060102_150405.xml"
	}
	return now.Format(pattern)
}
