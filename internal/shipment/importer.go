package shipment

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/pkg/encoding"
)

// ECS shipment feed: one file, many shipments.

type ecsShipments struct {
	XMLName   xml.Name      `xml:"Shipments"`
	Shipments []ecsShipment `xml:"Shipment"`
}

type ecsShipment struct {
	OrderNumber    string `xml:"OrderNumber"`
	TrackingNumber string `xml:"TrackingNumber"`
	Status         string `xml:"Status"`
	ShipDate       string `xml:"ShipDate"`
	ShipTime       string `xml:"ShipTime"`
}

// ShipmentRecord is one parsed entry of a carrier shipment file.
type ShipmentRecord struct {
	OrderNumber    string
	TrackingNumber string
	Status         string
	ShipDate       string
	ShipTime       string
}

// Delivered reports whether the carrier considers the parcel handed over.
// The feed has used several spellings over the years.
func (r ShipmentRecord) Delivered() bool {
	switch strings.ToUpper(strings.TrimSpace(r.Status)) {
	case "DELIVERED", "DEL", "BEZORGD":
		return true
	}
	return false
}

// ParseShipmentFile decodes one ECS shipment file.
func ParseShipmentFile(data []byte) ([]ShipmentRecord, error) {
	var doc ecsShipments
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse shipment file: %w", err)
	}

	records := make([]ShipmentRecord, 0, len(doc.Shipments))
	for _, s := range doc.Shipments {
		if s.OrderNumber == "" {
			continue
		}
		records = append(records, ShipmentRecord{
			OrderNumber:    strings.TrimSpace(s.OrderNumber),
			TrackingNumber: strings.TrimSpace(s.TrackingNumber),
			Status:         s.Status,
			ShipDate:       s.ShipDate,
			ShipTime:       s.ShipTime,
		})
	}
	return records, nil
}

// OrderResolver finds the order a shipment record refers to. Nil without
// error means no match.
type OrderResolver interface {
	FindOrderByAny(ctx context.Context, ref string) (*models.Order, error)
}

// StagedMarker closes the staging row once the carrier reports shipment.
type StagedMarker interface {
	MarkStagedShipped(ctx context.Context, orderID int64, trackingNumber string) error
}

// PickingCloser completes the open pickings of a delivered order.
type PickingCloser interface {
	CompleteOpenPickings(ctx context.Context, orderID int64) (int64, error)
}

// Importer polls the carrier's SFTP outbox for shipment files and applies
// them. Every file is handled in isolation: a bad file is logged and left
// in place, the poll moves on.
type Importer struct {
	files    transport.FileTransport
	resolver OrderResolver
	staged   StagedMarker
	pickings PickingCloser
	applier  *Applier
	dir      string
	autoDone bool
	logger   *slog.Logger
}

func NewImporter(files transport.FileTransport, resolver OrderResolver, staged StagedMarker,
	pickings PickingCloser, applier *Applier, dir string, autoDone bool, logger *slog.Logger) *Importer {
	return &Importer{
		files:    files,
		resolver: resolver,
		staged:   staged,
		pickings: pickings,
		applier:  applier,
		dir:      dir,
		autoDone: autoDone,
		logger:   logger,
	}
}

// Poll lists the shipment directory and processes every file it finds.
// Files are deleted only after all their records were handled.
func (i *Importer) Poll(ctx context.Context) (int, error) {
	if !i.files.Enabled() {
		return 0, nil
	}

	names, err := i.files.List(i.dir)
	if err != nil {
		return 0, &models.TransportError{Op: "sftp list", Err: err}
	}

	processed := 0
	for _, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), ".xml") {
			continue
		}
		if err := i.processFile(ctx, name); err != nil {
			i.logger.Error("Shipment file failed, leaving in place", "file", name, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (i *Importer) processFile(ctx context.Context, name string) error {
	raw, err := i.files.Read(i.dir, name)
	if err != nil {
		return &models.TransportError{Op: "sftp read", Err: err}
	}

	records, err := ParseShipmentFile([]byte(encoding.ToUTF8(raw)))
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := i.applyRecord(ctx, rec); err != nil {
			i.logger.Error("Shipment record skipped",
				"file", name, "order", rec.OrderNumber, "error", err)
		}
	}

	if err := i.files.Delete(i.dir, name); err != nil {
		return &models.TransportError{Op: "sftp delete", Err: err}
	}

	i.logger.Info("Shipment file imported", "file", name, "records", len(records))
	return nil
}

func (i *Importer) applyRecord(ctx context.Context, rec ShipmentRecord) error {
	order, err := i.resolver.FindOrderByAny(ctx, rec.OrderNumber)
	if err != nil {
		return fmt.Errorf("resolve order %s: %w", rec.OrderNumber, err)
	}
	if order == nil {
		i.logger.Warn("Shipment record references unknown order", "order", rec.OrderNumber)
		return nil
	}

	meta := models.EventMeta{Type: "ecs-file", Date: rec.ShipDate, Time: rec.ShipTime}
	item := models.OrderStatusItem{
		OrderNo:           rec.OrderNumber,
		TrackAndTraceCode: rec.TrackingNumber,
		ShipDate:          rec.ShipDate,
		ShipTime:          rec.ShipTime,
	}
	if err := i.applier.ApplyItem(ctx, order, meta, item); err != nil {
		return err
	}

	if rec.TrackingNumber != "" && i.staged != nil {
		if err := i.staged.MarkStagedShipped(ctx, order.ID, rec.TrackingNumber); err != nil {
			i.logger.Error("Failed to close staged row", "order", order.Name, "error", err)
		}
	}

	if rec.Delivered() && i.autoDone && i.pickings != nil {
		closed, err := i.pickings.CompleteOpenPickings(ctx, order.ID)
		if err != nil {
			i.logger.Error("Failed to complete pickings", "order", order.Name, "error", err)
		} else if closed > 0 {
			i.logger.Info("Completed pickings on delivery", "order", order.Name, "count", closed)
		}
	}
	return nil
}
