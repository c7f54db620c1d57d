package models

import "time"

// Product is the read-only view of a catalog product this connector needs.
// The host ERP owns the actual records; stores hand out snapshots.
type Product interface {
	ID() int64
	InternalRef() string
	Barcode() string
	VendorCodes() []string
	TemplateRef() string
	DisplayName() string
	WeightKg() float64
	IsService() bool
}

// HasCarrierSKU is an optional capability: products carrying an explicit
// carrier SKU override implement it. Resolved via type assertion, never
// reflection.
type HasCarrierSKU interface {
	CarrierSKU() string
}

// CatalogProduct is the plain snapshot implementation of Product.
type CatalogProduct struct {
	ProductID   int64
	Ref         string
	EAN         string
	SupplierRef []string
	Template    string
	Name        string
	Weight      float64
	Service     bool
}

func (p CatalogProduct) ID() int64             { return p.ProductID }
func (p CatalogProduct) InternalRef() string   { return p.Ref }
func (p CatalogProduct) Barcode() string       { return p.EAN }
func (p CatalogProduct) VendorCodes() []string { return p.SupplierRef }
func (p CatalogProduct) TemplateRef() string   { return p.Template }
func (p CatalogProduct) DisplayName() string   { return p.Name }
func (p CatalogProduct) WeightKg() float64     { return p.Weight }
func (p CatalogProduct) IsService() bool       { return p.Service }

// CarrierProduct is a CatalogProduct with a carrier-specific SKU override.
type CarrierProduct struct {
	CatalogProduct
	SKUOverride string
}

func (p CarrierProduct) CarrierSKU() string { return p.SKUOverride }

// Address is a raw contact block as stored by the host application.
type Address struct {
	Name        string
	Street      string
	Street2     string
	PostalCode  string
	City        string
	CountryCode string
	Phone       string
	Mobile      string
	Email       string
}

type OrderLine struct {
	Product Product
	Qty     float64
}

// FulfilmentStatus is the carrier-side status mirrored on the order.
// Transitions are monotonic: pending -> shipped -> partial.
type FulfilmentStatus string

const (
	StatusPending FulfilmentStatus = "pending"
	StatusShipped FulfilmentStatus = "shipped"
	StatusPartial FulfilmentStatus = "partial"
	StatusError   FulfilmentStatus = "error"
)

// ShipmentState groups the carrier-owned fields on an order. Mutated
// exclusively by the shipment applier.
type ShipmentState struct {
	FulfilmentOrderNo string
	MessageNo         string
	TrackingCodes     string // comma-joined, de-duplicated, arrival order
	ShipDate          string
	ShipTime          string
	Status            FulfilmentStatus
	LastWebhookAt     time.Time
	LastPayload       string
}

// Order is the sales-order snapshot the pipeline works on.
type Order struct {
	ID        int64
	Name      string
	ClientRef string
	OrderDate time.Time
	ShipTo    Address
	BillTo    Address
	Lines     []OrderLine
	Shipment  ShipmentState
}

// Picking is the outbound delivery record linked to an order.
type Picking struct {
	ID          int64
	OrderID     int64
	Name        string
	State       string // open pickings are anything but done/cancel
	TrackingRef string
	CreatedAt   time.Time
}

func (p Picking) IsOpen() bool {
	return p.State != "done" && p.State != "cancel"
}
