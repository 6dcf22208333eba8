package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const (
	PricingCatalog = "catalog"
	PricingClient  = "client"
)

// Pricer fills the monetary fields of a draft order.
type Pricer interface {
	Price(ctx context.Context, draft *models.Order) error
}

// NewPricer returns the pricer for mode. The catalog is only needed for
// PricingCatalog.
func NewPricer(mode string, catalog Catalog) (Pricer, error) {
	switch mode {
	case PricingClient:
		return clientPricer{}, nil
	case PricingCatalog, "":
		if catalog == nil {
			return nil, fmt.Errorf("catalog pricing requires a product catalog")
		}
		return catalogPricer{catalog: catalog}, nil
	default:
		return nil, fmt.Errorf("unknown pricing mode %q", mode)
	}
}

// clientPricer keeps the amounts submitted at checkout.
type clientPricer struct{}

func (clientPricer) Price(_ context.Context, draft *models.Order) error {
	for _, item := range draft.Items {
		if item.Price < 0 {
			return apperr.Validation("price must not be negative")
		}
	}
	return validateAmounts(draft)
}

// catalogPricer re-prices every line from the product catalog and derives
// itemsPrice and totalPrice. Tax and shipping come from the client.
type catalogPricer struct {
	catalog Catalog
}

func (p catalogPricer) Price(ctx context.Context, draft *models.Order) error {
	if err := validateAmounts(draft); err != nil {
		return err
	}

	ids := make([]primitive.ObjectID, 0, len(draft.Items))
	for _, item := range draft.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := p.catalog.FindProducts(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	itemsPrice := decimal.Zero
	for i, item := range draft.Items {
		product, ok := products[item.ProductID]
		if !ok || product.IsDeleted {
			return apperr.Validation("product not found: " + item.ProductID.Hex())
		}
		unit := effectiveProductPrice(product.Price, product.SaleEnabled, product.SalePrice)
		draft.Items[i].Price = unit
		draft.Items[i].Name = product.Name
		if draft.Items[i].Image == "" {
			draft.Items[i].Image = product.ImagePath
		}
		line := decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsPrice = itemsPrice.Add(line)
	}

	draft.ItemsPrice = money(itemsPrice)
	draft.TotalPrice = money(itemsPrice.
		Add(decimal.NewFromFloat(draft.TaxPrice)).
		Add(decimal.NewFromFloat(draft.ShippingPrice)))
	return nil
}

func validateAmounts(draft *models.Order) error {
	if draft.ItemsPrice < 0 || draft.TaxPrice < 0 || draft.ShippingPrice < 0 || draft.TotalPrice < 0 {
		return apperr.Validation("prices must not be negative")
	}
	return nil
}

func isProductOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

func effectiveProductPrice(price float64, saleEnabled bool, salePrice float64) float64 {
	if isProductOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}
