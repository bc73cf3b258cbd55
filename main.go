package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/dhabaclub/dhaba/internal/bus"
	"github.com/dhabaclub/dhaba/internal/pos"
	"github.com/dhabaclub/dhaba/internal/uistream"
)

const (
	appNamespace = "DHABA"
	appName      = "dhaba"
	appVersion   = "0.1.0"
)

const defaultSessionTTL = 12 * time.Hour

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	sessions := pos.NewSessionStore(defaultSessionTTL)
	carts := pos.NewCartStore()
	orders := pos.NewOrderCollection()
	links := pos.NewBillLinkCache()
	noticeHub := pos.NewNoticeHub(logger)
	streamHub := uistream.NewHub(logger)

	// A rejected bearer token kills every session; tell connected terminals.
	sessions.OnInvalidate(func(reason string) {
		noticeHub.Publish(pos.NoticeWarning, "signed out: "+reason)
		streamHub.Broadcast("session_invalidated", map[string]string{"reason": reason})
	})

	// Data access clients
	orderURL, _ := config.GetString("services.order.url")
	orderDA := pos.NewOrderDataAccess(orderURL, sessions, logger)

	billingURL, _ := config.GetString("services.billing.url")
	billingDA := pos.NewBillingDataAccess(billingURL, sessions, logger)

	catalogURL, _ := config.GetString("services.catalog.url")
	catalogClient := aqm.NewServiceClient(catalogURL)
	menuDA := pos.NewMenuDataAccess(catalogClient)

	// Push channel. A failed connect is not fatal: polling alone keeps the
	// dashboard convergent.
	var subscriber events.Subscriber
	natsURL, _ := config.GetString("nats.url")
	if natsURL != "" {
		natsSub, err := bus.NewNATSSubscriber(natsURL, func(err error) {
			noticeHub.NotifyError(err)
		})
		if err != nil {
			logger.Info("cannot connect to NATS, falling back to polling", "error", err)
		} else {
			subscriber = natsSub
		}
	}

	updateSub := pos.NewOrderUpdateSubscriber(orders, func(order pos.Order) {
		streamHub.Broadcast("order", order)
	}, logger)

	synchronizer := pos.NewSynchronizer(subscriber, updateSub, orders, noticeHub.NotifyError, logger)

	billing := pos.NewBillingService(billingDA, orders, links, noticeHub, logger)

	hd := pos.HandlerDeps{
		Sessions:     sessions,
		Carts:        carts,
		Orders:       orders,
		Synchronizer: synchronizer,
		MenuData:     menuDA,
		OrderData:    orderDA,
		BillingData:  billingDA,
		Billing:      billing,
		Hub:          noticeHub,
	}

	handler := pos.NewHandler(hd, config, logger)
	handler.SetSSEHandler(uistream.NewSSEHandler(streamHub, noticeHub, logger))

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: false, // Counter UIs are served from another origin
	})

	pollingHooks := aqm.LifecycleHooks{
		OnStart: func(context.Context) error {
			// Background polls borrow a live session credential; with nobody
			// signed in the tick is skipped rather than sent unauthenticated.
			synchronizer.StartPolling(ctx, "dashboard", pos.DashboardPollInterval,
				pos.WithSessionToken(sessions, orderDA.ListOrders))
			synchronizer.StartTablePolling(ctx, pos.TableSessionPollInterval, carts,
				func(ctx context.Context, tableID string) (*pos.TableSnapshot, error) {
					token, ok := sessions.ActiveToken()
					if !ok {
						return nil, pos.ErrNoSession
					}
					return orderDA.GetTableSession(pos.WithToken(ctx, token), tableID)
				})
			return nil
		},
		OnStop: func(context.Context) error {
			streamHub.Close()
			return nil
		},
	}

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(synchronizer, pollingHooks),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
