// Package storefront wires every state container of the storefront into a
// single explicit context object.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/example/ec-storefront/internal/address"
	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/cart"
	"github.com/example/ec-storefront/internal/catalog"
	"github.com/example/ec-storefront/internal/clock"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/expiry"
	"github.com/example/ec-storefront/internal/guard"
	"github.com/example/ec-storefront/internal/idle"
	"github.com/example/ec-storefront/internal/order"
	"github.com/example/ec-storefront/internal/session"
	"github.com/example/ec-storefront/internal/storage"
	"github.com/example/ec-storefront/internal/wishlist"
)

// Options configures New. Zero values fall back to config defaults.
type Options struct {
	Config config.Config

	// Storage overrides Config.Storage when set
	Storage storage.Storage
	// Activity is where input events come from. Defaults to a Channel
	// accepting the configured activity types.
	Activity idle.ActivitySource
	Clock    clock.Clock
	// Kafka overrides the writer built from Config.KafkaBrokers
	Kafka events.MessageWriter
	// Navigate receives route changes, e.g. the login redirect after expiry
	Navigate func(path string)
}

// Storefront owns the containers of one storefront process
type Storefront struct {
	Bus         *events.Bus
	Storage     storage.Storage
	Client      *apiclient.Client
	Session     *session.Store
	Cart        *cart.Store
	Addresses   *address.Store
	Orders      *order.Store
	Wishlist    *wishlist.Store
	Catalog     *catalog.Store
	Idle        *idle.Monitor
	Activity    idle.ActivitySource
	Coordinator *expiry.Coordinator

	closeOnce sync.Once
	closers   []func() error
}

// New builds and wires the storefront, hydrates the session from durable
// storage and starts the expiry coordinator
func New(ctx context.Context, opts Options) (*Storefront, error) {
	cfg := withDefaults(opts.Config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Storefront{Bus: events.NewBus()}

	s.Storage = opts.Storage
	if s.Storage == nil {
		store, closeStore, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		s.Storage = store
		s.closers = append(s.closers, closeStore)
	}

	writer := opts.Kafka
	if writer == nil && cfg.KafkaEnabled() {
		writer = events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("[Kafka] Forwarding events to %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	if writer != nil {
		sink := events.NewKafkaSink(writer)
		detach := sink.Attach(s.Bus)
		s.closers = append(s.closers, func() error {
			detach()
			return sink.Close()
		})
	}

	s.Client = apiclient.New(apiclient.Config{BaseURL: cfg.APIURL, Timeout: cfg.HTTPTimeout}, s.Storage, s.Bus)
	s.Session = session.NewStore(s.Client, s.Storage, s.Bus)
	s.Client.SetTokenSource(apiclient.TokenFunc(s.Session.Token))

	s.Cart = cart.NewStore(s.Client, s.Storage, s.Bus, s.Session)
	s.Addresses = address.NewStore(s.Client)
	s.Orders = order.NewStore(s.Client, s.Cart, s.Storage)
	s.Wishlist = wishlist.NewStore(s.Client, s.Storage)
	s.Catalog = catalog.NewStore(s.Client, s.Session)

	s.Activity = opts.Activity
	if s.Activity == nil {
		s.Activity = idle.NewChannel(cfg.ActivityEvents...)
	}
	monitor, err := idle.NewMonitor(idle.Config{Window: cfg.IdleWindow, Events: cfg.ActivityEvents}, s.Activity, opts.Clock, s.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Idle = monitor

	s.Coordinator = expiry.New(s.Bus, s.Session, s.Storage, s.Idle, opts.Navigate)
	s.Coordinator.Register(s.Cart, s.Addresses, s.Orders, s.Wishlist)

	// The wishlist outlives an explicit logout; expiry acknowledgement clears it.
	unsubLogout := s.Bus.Subscribe(events.SessionLogout, func(events.Event) {
		s.Cart.Reset()
		s.Orders.Reset()
		s.Addresses.Reset()
	})
	s.closers = append(s.closers, func() error {
		unsubLogout()
		return nil
	})

	if err := s.Session.Hydrate(ctx); err != nil {
		log.Printf("[Session] Hydrate failed: %v", err)
	}
	if err := s.Wishlist.Hydrate(ctx); err != nil {
		log.Printf("[Wishlist] Hydrate failed: %v", err)
	}
	s.Coordinator.Start()
	s.closers = append(s.closers, func() error {
		s.Coordinator.Stop()
		return nil
	})

	return s, nil
}

// Authorize decides whether the current session may open path
func (s *Storefront) Authorize(ctx context.Context, path string) guard.Decision {
	auth := guard.Resolve(ctx, s.Session.Snapshot(), s.Storage)
	return guard.CheckPath(auth, guard.DefaultRules, path)
}

// Close tears everything down in reverse construction order
func (s *Storefront) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			errs = append(errs, s.closers[i]())
		}
	})
	return errors.Join(errs...)
}

func withDefaults(cfg config.Config) config.Config {
	if cfg.APIURL == "" {
		cfg.APIURL = config.DefaultAPIURL
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = config.DefaultTimeout
	}
	if cfg.IdleWindow == 0 {
		cfg.IdleWindow = config.DefaultIdleWindow
	}
	if len(cfg.ActivityEvents) == 0 {
		cfg.ActivityEvents = idle.DefaultEvents
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = config.DefaultKafkaTopic
	}
	return cfg
}
