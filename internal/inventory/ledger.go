// Package inventory owns the per-variant stock counters. Every mutation is a
// locked read-modify-write of one inventory row: either in its own
// transaction (Adjust, Reserve, Confirm, Release) or inside a transaction the
// caller already holds (the ...Tx variants).
package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"go.uber.org/zap"
)

type Op string

const (
	OpAdjust  Op = "adjust"
	OpReserve Op = "reserve"
	OpConfirm Op = "confirm"
	OpRelease Op = "release"
)

// Notifier is told about records left at or below their low-stock threshold
// by a committed operation.
type Notifier interface {
	StockLow(ctx context.Context, rec model.InventoryRecord)
}

type Ledger struct {
	Store    store.Store
	Logger   *zap.Logger
	Metrics  *metrics.Engine
	Notifier Notifier
}

func NewLedger(st store.Store, logger *zap.Logger, m *metrics.Engine, n Notifier) *Ledger {
	return &Ledger{Store: st, Logger: logger, Metrics: m, Notifier: n}
}

// Apply computes the counters after op; rec is left untouched.
func Apply(rec model.InventoryRecord, op Op, n int) (model.InventoryRecord, error) {
	if op != OpAdjust && n <= 0 {
		return rec, fmt.Errorf("%s %s qty %d: %w", op, rec.VariantID, n, apperr.ErrInvalidInput)
	}
	switch op {
	case OpAdjust:
		// quantity may not drop below what is already promised to pending orders
		if rec.Quantity+n < 0 || rec.Quantity+n < rec.Reserved {
			return rec, fmt.Errorf("adjust %s by %d (quantity %d, reserved %d): %w",
				rec.VariantID, n, rec.Quantity, rec.Reserved, apperr.ErrInsufficientStock)
		}
		rec.Quantity += n
	case OpReserve:
		if rec.Available() < n {
			return rec, fmt.Errorf("reserve %d of %s (available %d): %w",
				n, rec.VariantID, rec.Available(), apperr.ErrInsufficientStock)
		}
		rec.Reserved += n
	case OpConfirm:
		if n > rec.Reserved {
			return rec, fmt.Errorf("confirm %d of %s (reserved %d): %w", n, rec.VariantID, rec.Reserved, apperr.ErrInvalidState)
		}
		rec.Reserved -= n
		rec.Quantity -= n
	case OpRelease:
		if n > rec.Reserved {
			return rec, fmt.Errorf("release %d of %s (reserved %d): %w", n, rec.VariantID, rec.Reserved, apperr.ErrInvalidState)
		}
		rec.Reserved -= n
	default:
		return rec, fmt.Errorf("unknown inventory op %q: %w", op, apperr.ErrInvalidInput)
	}
	return rec, nil
}

// ApplyTx locks the variant's row in tx, applies op and writes it back.
func (l *Ledger) ApplyTx(ctx context.Context, tx store.InventoryTx, variantID string, op Op, n int) (model.InventoryRecord, error) {
	rec, err := tx.LockInventory(ctx, variantID)
	if err != nil {
		return model.InventoryRecord{}, err
	}
	next, err := Apply(rec, op, n)
	if err != nil {
		return rec, err
	}
	if err := tx.UpdateInventory(ctx, next); err != nil {
		return rec, err
	}
	return next, nil
}

func (l *Ledger) ReserveTx(ctx context.Context, tx store.InventoryTx, variantID string, qty int) (model.InventoryRecord, error) {
	return l.ApplyTx(ctx, tx, variantID, OpReserve, qty)
}

func (l *Ledger) ConfirmTx(ctx context.Context, tx store.InventoryTx, variantID string, qty int) (model.InventoryRecord, error) {
	return l.ApplyTx(ctx, tx, variantID, OpConfirm, qty)
}

func (l *Ledger) ReleaseTx(ctx context.Context, tx store.InventoryTx, variantID string, qty int) (model.InventoryRecord, error) {
	return l.ApplyTx(ctx, tx, variantID, OpRelease, qty)
}

func (l *Ledger) AdjustTx(ctx context.Context, tx store.InventoryTx, variantID string, delta int) (model.InventoryRecord, error) {
	return l.ApplyTx(ctx, tx, variantID, OpAdjust, delta)
}

func (l *Ledger) Adjust(ctx context.Context, variantID string, delta int) (model.InventoryRecord, error) {
	return l.run(ctx, variantID, OpAdjust, delta)
}

func (l *Ledger) Reserve(ctx context.Context, variantID string, qty int) (model.InventoryRecord, error) {
	return l.run(ctx, variantID, OpReserve, qty)
}

func (l *Ledger) Confirm(ctx context.Context, variantID string, qty int) (model.InventoryRecord, error) {
	return l.run(ctx, variantID, OpConfirm, qty)
}

// Release returns reserved units to available stock, e.g. when a pending
// order is cancelled.
func (l *Ledger) Release(ctx context.Context, variantID string, qty int) (model.InventoryRecord, error) {
	return l.run(ctx, variantID, OpRelease, qty)
}

func (l *Ledger) run(ctx context.Context, variantID string, op Op, n int) (model.InventoryRecord, error) {
	var out model.InventoryRecord
	err := l.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) (err error) {
		out, err = l.ApplyTx(ctx, tx, variantID, op, n)
		return err
	})
	l.Metrics.LedgerOp(string(op), err)
	if err != nil {
		l.Logger.Debug("inventory op rejected",
			zap.String("op", string(op)), zap.String("variant_id", variantID), zap.Int("n", n), zap.Error(err))
		return model.InventoryRecord{}, err
	}
	l.Logger.Info("inventory op",
		zap.String("op", string(op)),
		zap.String("variant_id", variantID),
		zap.Int("n", n),
		zap.Int("quantity", out.Quantity),
		zap.Int("reserved", out.Reserved),
	)
	l.NotifyIfLow(ctx, out)
	return out, nil
}

// NotifyIfLow must only be called after the record's transaction committed.
func (l *Ledger) NotifyIfLow(ctx context.Context, rec model.InventoryRecord) {
	if l.Notifier != nil && rec.LowStock() {
		l.Notifier.StockLow(ctx, rec)
	}
}

// Open creates the inventory record of a variant.
func (l *Ledger) Open(ctx context.Context, variantID string, quantity, lowStockThreshold int) (model.InventoryRecord, error) {
	if quantity < 0 || lowStockThreshold < 0 {
		return model.InventoryRecord{}, fmt.Errorf("open %s quantity %d threshold %d: %w",
			variantID, quantity, lowStockThreshold, apperr.ErrInvalidInput)
	}
	rec := model.InventoryRecord{VariantID: variantID, Quantity: quantity, LowStockThreshold: lowStockThreshold}
	err := l.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetVariant(ctx, variantID); err != nil {
			return err
		}
		return tx.InsertInventory(ctx, rec)
	})
	if err != nil {
		return model.InventoryRecord{}, err
	}
	return l.Get(ctx, variantID)
}

func (l *Ledger) Get(ctx context.Context, variantID string) (rec model.InventoryRecord, err error) {
	err = l.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		rec, err = tx.GetInventory(ctx, variantID)
		return err
	})
	return rec, err
}
