package projection

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/domain/product"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
	"github.com/example/ec-order-engine/internal/readmodel"
)

type ProductProjector struct {
	indexer
	log logrus.FieldLogger
}

func (p *ProductProjector) HandleProductCreated(ctx context.Context, env eventbus.Envelope) error {
	log := eventLogger(p.log, env)

	var e product.ProductCreated
	if err := decode(log, env, &e); err != nil {
		return err
	}

	doc := readmodel.ProductReadModel{
		ID:                e.ProductID,
		Name:              e.Name,
		Description:       e.Description,
		Price:             e.Price,
		Currency:          e.Currency,
		SKU:               e.SKU,
		CategoryID:        e.CategoryID,
		MinimumStockLevel: e.MinimumStockLevel,
		Featured:          e.Featured,
		CreatedAt:         e.OccurredOn,
		UpdatedAt:         e.OccurredOn,
		Version:           env.Version,
	}
	doc.SetStock(e.StockQuantity)

	return p.write(ctx, log, search.Document{
		Collection: readmodel.CollectionProducts,
		ID:         e.ProductID,
		Version:    env.Version,
		Body:       doc,
	}, cache.ProductKey(e.ProductID), cache.ProductListPattern)
}

func (p *ProductProjector) HandleStockChanged(ctx context.Context, env eventbus.Envelope) error {
	log := eventLogger(p.log, env)

	var e product.ProductStockChanged
	if err := decode(log, env, &e); err != nil {
		return err
	}

	var doc readmodel.ProductReadModel
	found, _, err := p.index.Get(ctx, readmodel.CollectionProducts, e.ProductID, &doc)
	if err != nil {
		log.WithError(err).Error("failed to load product document")
		return err
	}
	if !found {
		log.Warn("product document not indexed yet, stock change skipped")
		return nil
	}

	doc.MinimumStockLevel = e.MinimumStockLevel
	doc.SetStock(e.StockQuantity)
	doc.UpdatedAt = e.OccurredOn
	doc.Version = env.Version

	return p.write(ctx, log, search.Document{
		Collection: readmodel.CollectionProducts,
		ID:         e.ProductID,
		Version:    env.Version,
		Body:       doc,
	}, cache.ProductKey(e.ProductID), cache.ProductListPattern)
}
