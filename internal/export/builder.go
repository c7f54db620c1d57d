// Package export assembles and sends outbound order payloads: JSON for
// the carrier's fulfilment REST API, XML for the legacy ECS SFTP channel.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/address"
	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/pack"
	"github.com/gvanweelden/fulfilsync/internal/sku"
)

const orderDateTimeLayout = "2006-01-02T15:04:05"

// CodeMatcher picks a carrier product code for a destination and weight.
type CodeMatcher interface {
	Match(ctx context.Context, countryCode string, weightKg float64) (string, bool, error)
}

// FulfilmentOrder is the REST export payload. Field names follow the
// carrier's API contract.
type FulfilmentOrder struct {
	OrderNumber        string          `json:"orderNumber"`
	WebOrderNumber     string          `json:"webOrderNumber"`
	MerchantCode       string          `json:"merchantCode"`
	FulfilmentLocation string          `json:"fulfilmentLocation"`
	Channel            string          `json:"channel"`
	ProductCode        string          `json:"productCode"`
	OrderDateTime      string          `json:"orderDateTime"`
	OrderLines         []OrderLineItem `json:"orderLines"`
	ShipToAddress      AddressBlock    `json:"shipToAddress"`
	InvoiceAddress     AddressBlock    `json:"invoiceAddress"`
}

type OrderLineItem struct {
	SKU      string `json:"SKU"`
	Quantity int    `json:"quantity"`
}

type AddressBlock struct {
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	Street              string `json:"street"`
	HouseNumber         int    `json:"houseNumber"`
	HouseNumberAddition string `json:"houseNumberAddition"`
	PostalCode          string `json:"postalCode"`
	City                string `json:"city"`
	CountryCode         string `json:"countryCode"`
	PhoneNumber         string `json:"phoneNumber"`
	Email               string `json:"email"`
}

// BuildInfo carries the derived figures the audit log wants alongside
// the payload itself.
type BuildInfo struct {
	TotalWeightKg float64
	CountryCode   string
	LineCount     int
}

// Builder turns an order snapshot into an outbound payload. Pure: no I/O
// besides the rule lookup its matcher performs.
type Builder struct {
	cfg    *config.Config
	kits   pack.Source
	codes  CodeMatcher
	logger *slog.Logger
}

func NewBuilder(cfg *config.Config, kits pack.Source, codes CodeMatcher, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, kits: kits, codes: codes, logger: logger}
}

// ShippingCode resolves the carrier product code for a destination and
// weight, falling back to the configured default when no rule matches.
func (b *Builder) ShippingCode(ctx context.Context, countryCode string, weightKg float64) (string, error) {
	code, ok, err := b.codes.Match(ctx, countryCode, weightKg)
	if err != nil {
		return "", fmt.Errorf("product code lookup for %s: %w", countryCode, err)
	}
	if !ok {
		return b.cfg.DefaultProductCode, nil
	}
	return code, nil
}

// BuildOrder assembles the REST payload. A nil payload with a nil error
// means the order has no shippable lines and should be skipped.
// The total weight is accumulated while exploding lines and only then is
// the product code looked up: the code depends on the weight.
func (b *Builder) BuildOrder(ctx context.Context, order *models.Order) (*FulfilmentOrder, BuildInfo, error) {
	lines, totalWeight := b.explodeLines(order)

	country := order.ShipTo.CountryCode
	if country == "" {
		country = order.BillTo.CountryCode
	}
	info := BuildInfo{TotalWeightKg: totalWeight, CountryCode: country, LineCount: len(lines)}

	if len(lines) == 0 {
		b.logger.Info("Skipping order without shippable lines", "order", order.Name)
		return nil, info, nil
	}

	code, ok, err := b.codes.Match(ctx, country, totalWeight)
	if err != nil {
		return nil, info, fmt.Errorf("product code lookup for %s: %w", order.Name, err)
	}
	if !ok {
		code = b.cfg.DefaultProductCode
	}

	orderDate := order.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}

	billTo := order.BillTo
	if billTo.Name == "" {
		billTo = order.ShipTo
	}

	orderNumber := address.SanitizeOrderNumber(order.Name, order.ID)

	payload := &FulfilmentOrder{
		OrderNumber:        orderNumber,
		WebOrderNumber:     orderNumber,
		MerchantCode:       b.cfg.MerchantCode,
		FulfilmentLocation: b.cfg.FulfilmentLoc,
		Channel:            b.cfg.Channel,
		ProductCode:        code,
		OrderDateTime:      orderDate.Format(orderDateTimeLayout),
		OrderLines:         lines,
		ShipToAddress:      buildAddress(order.ShipTo),
		InvoiceAddress:     buildAddress(billTo),
	}
	return payload, info, nil
}

// explodeLines expands kits, drops services and unresolvable SKUs, rounds
// fractional quantities up and sums duplicates, preserving first-seen order.
func (b *Builder) explodeLines(order *models.Order) ([]OrderLineItem, float64) {
	qtyBySKU := map[string]int{}
	var skuOrder []string
	var totalWeight float64

	for _, line := range order.Lines {
		if line.Product == nil || line.Product.IsService() {
			continue
		}

		for _, leaf := range pack.Explode(b.kits, line.Product, line.Qty, b.logger) {
			if leaf.Product.IsService() {
				continue
			}

			qty := pack.CeilQty(leaf.Qty)
			if qty <= 0 {
				continue
			}

			totalWeight += leaf.Product.WeightKg() * float64(qty)

			s := sku.Resolve(leaf.Product)
			if s == "" {
				b.logger.Warn("Dropping line with unresolvable SKU",
					"order", order.Name, "product", leaf.Product.DisplayName())
				continue
			}

			if _, seen := qtyBySKU[s]; !seen {
				skuOrder = append(skuOrder, s)
			}
			qtyBySKU[s] += qty
		}
	}

	lines := make([]OrderLineItem, 0, len(skuOrder))
	for _, s := range skuOrder {
		lines = append(lines, OrderLineItem{SKU: s, Quantity: qtyBySKU[s]})
	}
	return lines, totalWeight
}

func buildAddress(a models.Address) AddressBlock {
	street, houseNo, addition := address.SplitStreet(a.Street, a.Street2)
	first, last := address.SplitName(a.Name)
	if last == "" {
		last = first
	}

	phone := a.Phone
	if phone == "" {
		phone = a.Mobile
	}

	return AddressBlock{
		FirstName:           first,
		LastName:            last,
		Street:              street,
		HouseNumber:         houseNo,
		HouseNumberAddition: addition,
		PostalCode:          stripSpaces(a.PostalCode),
		City:                a.City,
		CountryCode:         a.CountryCode,
		PhoneNumber:         phone,
		Email:               a.Email,
	}
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
