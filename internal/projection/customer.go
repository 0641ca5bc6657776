package projection

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
	"github.com/example/ec-order-engine/internal/readmodel"
)

type CustomerProjector struct {
	indexer
	log logrus.FieldLogger
}

func (p *CustomerProjector) HandleCustomerRegistered(ctx context.Context, env eventbus.Envelope) error {
	log := eventLogger(p.log, env)

	var e customer.CustomerRegistered
	if err := decode(log, env, &e); err != nil {
		return err
	}

	return p.write(ctx, log, search.Document{
		Collection: readmodel.CollectionCustomers,
		ID:         e.CustomerID,
		Version:    env.Version,
		Body: readmodel.CustomerReadModel{
			ID:           e.CustomerID,
			FirstName:    e.FirstName,
			LastName:     e.LastName,
			FullName:     e.FirstName + " " + e.LastName,
			Email:        e.Email,
			Phone:        e.PhoneNumber,
			Newsletter:   e.Newsletter,
			RegisteredAt: e.OccurredOn,
			Version:      env.Version,
		},
	}, cache.CustomerKey(e.CustomerID))
}
