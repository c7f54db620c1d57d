// Package webhook is the inbound HTTP surface: the carrier's status
// webhook, label downloads and the operational endpoints.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/models"
)

// JobStore enqueues one job per webhook delivery.
type JobStore interface {
	EnqueueJob(ctx context.Context, job *models.WebhookJob) (int64, error)
}

// LabelStore serves stored shipping labels.
type LabelStore interface {
	GetLabel(ctx context.Context, id int64) (*models.Label, error)
}

// ExportFunc pushes one order to the carrier REST API on demand.
type ExportFunc func(ctx context.Context, orderID int64) (bool, error)

// ReplenishRequest is the body of a manual replenishment trigger.
type ReplenishRequest struct {
	OrderNumber        string                 `json:"orderNumber"`
	OrderDate          string                 `json:"orderDate"`
	PlannedReceiptDate string                 `json:"plannedReceiptDate"`
	Lines              []ReplenishRequestLine `json:"lines"`
}

type ReplenishRequestLine struct {
	ProductID int64   `json:"productId"`
	Qty       float64 `json:"qty"`
}

// ReplenishFunc announces inbound stock to the carrier on demand.
type ReplenishFunc func(ctx context.Context, req ReplenishRequest) (bool, error)

type Handler struct {
	cfg       *config.Config
	jobs      JobStore
	labels    LabelStore
	export    ExportFunc
	replenish ReplenishFunc
	logger    *slog.Logger
}

func NewHandler(cfg *config.Config, jobs JobStore, labels LabelStore,
	export ExportFunc, replenish ReplenishFunc, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		jobs:      jobs,
		labels:    labels,
		export:    export,
		replenish: replenish,
		logger:    logger,
	}
}

// Router wires the HTTP surface. The webhook deliberately answers with
// plain-text bodies: that is what the carrier's delivery agent expects.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/webhook/shipment", h.receiveShipment)
	r.GET("/labels/:id", h.downloadLabel)
	r.POST("/orders/:id/export", h.exportOrder)
	r.POST("/replenishments", h.announceReplenishment)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (h *Handler) receiveShipment(c *gin.Context) {
	if h.cfg.WebhookKey != "" && c.GetHeader("apikey") != h.cfg.WebhookKey {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	// Meta extraction is best effort: the processor re-parses strictly.
	var payload models.ShipmentEventPayload
	_ = json.Unmarshal(body, &payload)
	meta := payload.Meta()

	job := &models.WebhookJob{
		CorrelationID: uuid.NewString(),
		Payload:       body,
		MerchantCode:  meta.MerchantCode,
		MessageNo:     meta.MessageNo,
		EventDate:     meta.Date,
		EventTime:     meta.Time,
	}

	id, err := h.jobs.EnqueueJob(c.Request.Context(), job)
	if err != nil {
		h.logger.Error("Failed to enqueue webhook job", "error", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.logger.Info("Webhook delivery accepted",
		"job_id", id, "correlation_id", job.CorrelationID,
		"merchant", meta.MerchantCode, "items", len(payload.OrderStatus))
	c.String(http.StatusOK, "OK")
}

// exportOrder is the manual trigger behind the back-office "send to
// carrier" action.
func (h *Handler) exportOrder(c *gin.Context) {
	if h.export == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export not configured"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	accepted, err := h.export(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Manual order export failed", "order_id", id, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !accepted {
		// Rejection detail lives in the audit log.
		c.JSON(http.StatusBadGateway, gin.H{"accepted": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *Handler) announceReplenishment(c *gin.Context) {
	if h.replenish == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "replenishment not configured"})
		return
	}

	var req ReplenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	accepted, err := h.replenish(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Replenishment announce failed", "order", req.OrderNumber, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !accepted {
		c.JSON(http.StatusBadGateway, gin.H{"accepted": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *Handler) downloadLabel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid label id")
		return
	}

	label, err := h.labels.GetLabel(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load label", "label_id", id, "error", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if label == nil {
		c.String(http.StatusNotFound, "label not found")
		return
	}

	filename := label.Filename
	if filename == "" {
		filename = fmt.Sprintf("Label_%s.pdf", label.Barcode)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", label.Content)
}
