package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"go.uber.org/zap"
)

type Service struct {
	Store  store.Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{Store: st, Logger: logger, Now: time.Now}
}

// NormalizeCurrency upper-cases an ISO 4217 code and rejects anything that is
// not three letters.
func NormalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "", fmt.Errorf("currency %q: %w", c, apperr.ErrInvalidInput)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency %q: %w", c, apperr.ErrInvalidInput)
		}
	}
	return c, nil
}

func (s *Service) Current(ctx context.Context, variantID, currency string) (model.PriceRow, error) {
	return s.At(ctx, variantID, currency, s.Now())
}

func (s *Service) At(ctx context.Context, variantID, currency string, at time.Time) (row model.PriceRow, err error) {
	err = s.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		row, err = s.AtTx(ctx, tx, variantID, currency, at)
		return err
	})
	return row, err
}

// AtTx resolves inside a caller-owned transaction.
func (s *Service) AtTx(ctx context.Context, tx store.PriceTx, variantID, currency string, at time.Time) (model.PriceRow, error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return model.PriceRow{}, err
	}
	rows, err := tx.ListPrices(ctx, variantID, cur)
	if err != nil {
		return model.PriceRow{}, err
	}
	row, ok := Resolve(rows, cur, at)
	if !ok {
		return model.PriceRow{}, fmt.Errorf("variant %s %s at %s: %w", variantID, cur, at.UTC().Format(time.RFC3339), apperr.ErrNoPriceForCurrency)
	}
	return row, nil
}

func (s *Service) History(ctx context.Context, variantID, currency string) (rows []model.PriceRow, err error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	err = s.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetVariant(ctx, variantID); err != nil {
			return err
		}
		rows, err = tx.ListPrices(ctx, variantID, cur)
		return err
	})
	return rows, err
}

// SetPrice makes amount the current price from validFrom on (now when zero).
// The previous open row is closed at validFrom in the same transaction.
func (s *Service) SetPrice(ctx context.Context, variantID, currency string, amount int64, validFrom time.Time) (model.PriceRow, error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return model.PriceRow{}, err
	}
	if amount < 0 {
		return model.PriceRow{}, fmt.Errorf("amount %d: %w", amount, apperr.ErrInvalidInput)
	}
	if validFrom.IsZero() {
		validFrom = s.Now()
	}
	// postgres keeps microseconds
	validFrom = validFrom.UTC().Truncate(time.Microsecond)

	var created model.PriceRow
	err = s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		rows, err := tx.LockPrices(ctx, variantID, cur)
		if err != nil {
			return err
		}
		var open *model.PriceRow
		for i := range rows {
			r := rows[i]
			if r.Open() {
				open = &rows[i]
				continue
			}
			if r.ValidTo.After(validFrom) {
				return fmt.Errorf("price from %s overlaps row %s: %w", validFrom.Format(time.RFC3339), r.ID, apperr.ErrInvalidInput)
			}
		}
		if open != nil {
			if !validFrom.After(open.ValidFrom) {
				return fmt.Errorf("price from %s must start after current row from %s: %w",
					validFrom.Format(time.RFC3339), open.ValidFrom.Format(time.RFC3339), apperr.ErrInvalidInput)
			}
			if err := tx.ClosePrice(ctx, open.ID, validFrom); err != nil {
				return err
			}
		}
		created, err = tx.InsertPrice(ctx, model.PriceRow{
			VariantID: variantID,
			Currency:  cur,
			Amount:    amount,
			ValidFrom: validFrom,
		})
		return err
	})
	if err != nil {
		return model.PriceRow{}, err
	}
	s.Logger.Info("price set",
		zap.String("variant_id", variantID),
		zap.String("currency", cur),
		zap.Int64("amount", amount),
		zap.Time("valid_from", validFrom),
	)
	return created, nil
}
