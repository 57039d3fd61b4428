package worker

import (
	"context"
	"log"

	"commerce-core/internal/broker"
	"commerce-core/internal/models"
	"commerce-core/internal/redisclient"
	"commerce-core/internal/store"
)

// StockCacheWorker keeps the redis availability cache in step with the
// database. It consumes order events and re-reads availability for every
// product the event touched; last write wins, so replays are harmless.
type StockCacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	cache        *redisclient.Client
}

// NewStockCacheWorker creates a new stock cache worker
func NewStockCacheWorker(
	consumer *broker.Consumer,
	store *store.Store,
	cache *redisclient.Client,
) *StockCacheWorker {
	w := &StockCacheWorker{
		consumer: consumer,
		store:    store,
		cache:    cache,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(func(ctx context.Context, event *models.OrderCreatedEvent) error {
		return w.refresh(ctx, event.Lines)
	})
	eventHandler.OnOrderRefunded(func(ctx context.Context, event *models.OrderRefundedEvent) error {
		return w.refresh(ctx, event.Lines)
	})
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StockCacheWorker) Start(ctx context.Context) error {
	log.Println("Starting stock cache worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockCacheWorker) Stop() error {
	log.Println("Stopping stock cache worker...")
	return w.consumer.Close()
}

// SyncAll primes the cache with every product's availability, called once
// at startup before consuming events.
func (w *StockCacheWorker) SyncAll(ctx context.Context) error {
	products, err := w.store.GetProducts(ctx)
	if err != nil {
		return err
	}

	for _, product := range products {
		if err := w.cache.SetAvailability(ctx, product.ID, product.AvailableQuantity); err != nil {
			log.Printf("Failed to cache availability for product %d: %v", product.ID, err)
		}
	}

	log.Printf("Stock cache primed: %d products", len(products))
	return nil
}

func (w *StockCacheWorker) refresh(ctx context.Context, lines []models.OrderLineData) error {
	for _, line := range lines {
		available, err := w.store.ProductAvailability(ctx, line.ProductID)
		if err != nil {
			log.Printf("Failed to read availability for product %d: %v", line.ProductID, err)
			continue
		}

		if err := w.cache.SetAvailability(ctx, line.ProductID, available); err != nil {
			log.Printf("Failed to cache availability for product %d: %v", line.ProductID, err)
		}
	}
	return nil
}
