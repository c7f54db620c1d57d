package pack

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

type mapSource struct {
	boms  map[int64]*BOM
	packs map[int64][]Component
}

func (s mapSource) PhantomBOM(p models.Product) (*BOM, bool) {
	b, ok := s.boms[p.ID()]
	return b, ok
}

func (s mapSource) PackLines(p models.Product) []Component {
	return s.packs[p.ID()]
}

func product(id int64, name string) models.CatalogProduct {
	return models.CatalogProduct{ProductID: id, Ref: name, Name: name, Weight: 1}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestExplodeLeafIsIdentity(t *testing.T) {
	leaf := product(1, "MUG")
	got := Explode(NoKits{}, leaf, 3, discard)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Product.ID())
	assert.Equal(t, 3.0, got[0].Qty)
}

func TestExplodeBOMScalesByBaseQty(t *testing.T) {
	kit := product(10, "GIFTSET")
	a := product(11, "CANDLE")
	b := product(12, "HOLDER")

	src := mapSource{boms: map[int64]*BOM{
		// 2 kit units are made from 4 candles and 2 holders
		10: {BaseQty: 2, Lines: []Component{{Product: a, Qty: 4}, {Product: b, Qty: 2}}},
	}}

	got := Explode(src, kit, 6, discard)
	require.Len(t, got, 2)
	assert.Equal(t, 12.0, got[0].Qty)
	assert.Equal(t, 6.0, got[1].Qty)
}

func TestExplodeNestedPackLines(t *testing.T) {
	outer := product(20, "DUO")
	inner := product(21, "TRIO")
	leaf := product(22, "SOAP")

	src := mapSource{packs: map[int64][]Component{
		20: {{Product: inner, Qty: 2}},
		21: {{Product: leaf, Qty: 3}},
	}}

	got := Explode(src, outer, 2, discard)
	require.Len(t, got, 1)
	assert.Equal(t, int64(22), got[0].Product.ID())
	assert.Equal(t, 12.0, got[0].Qty)
}

func TestExplodeCircularKitTerminates(t *testing.T) {
	// A contains B contains A: the second visit of A stops the recursion.
	a := product(30, "A")
	b := product(31, "B")

	src := mapSource{packs: map[int64][]Component{
		30: {{Product: b, Qty: 1}},
		31: {{Product: a, Qty: 1}},
	}}

	got := Explode(src, a, 1, discard)
	require.Len(t, got, 1)
	assert.Equal(t, int64(30), got[0].Product.ID())
	assert.Equal(t, 1.0, got[0].Qty)
}

func TestCeilQty(t *testing.T) {
	assert.Equal(t, 0, CeilQty(0))
	assert.Equal(t, 0, CeilQty(-2))
	assert.Equal(t, 2, CeilQty(2))
	assert.Equal(t, 3, CeilQty(2.01))
	assert.Equal(t, 1, CeilQty(0.25))
}
