package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/example/bistro/docs"
	"github.com/example/bistro/gateway"
	"github.com/example/bistro/pkg/cart"
	"github.com/example/bistro/pkg/catalog"
	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/discovery"
	"github.com/example/bistro/pkg/grpc"
	"github.com/example/bistro/pkg/images"
	"github.com/example/bistro/pkg/logging"
	"github.com/example/bistro/pkg/order"
	"github.com/example/bistro/pkg/repository"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// @title Bistro API
// @version 1.0
// @description Menu, cart and order endpoints for the bistro storefront and admin page.
// @BasePath /
func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the YAML config file")
	pflag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting bistro",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver))

	ctx := context.Background()

	// Storage
	store, err := repository.Open(ctx, cfg, logger.Named("storage"))
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("Failed to close storage", zap.Error(err))
		}
	}()

	cat := catalog.NewService(store, logger.Named("catalog"))
	if err := cat.SeedDefaults(ctx, cfg.Seed.MenuFile); err != nil {
		logger.Fatal("Failed to seed defaults", zap.Error(err))
	}

	// Carts live in a single actor
	system := actor.NewActorSystem()
	carts, err := cart.NewManager(system, logger.Named("cart"), cart.WithRequestTimeout(cfg.Cart.RequestTimeout))
	if err != nil {
		logger.Fatal("Failed to start cart manager", zap.Error(err))
	}
	defer carts.Stop()

	orders := order.NewService(store, carts, cat, logger.Named("order"))

	gw := gateway.NewGateway(cfg, logger.Named("gateway"), gateway.Services{
		Carts:   carts,
		Orders:  orders,
		Catalog: cat,
		Images:  images.NewStore(cfg.Images.Dir, cfg.Images.URLPrefix),
		Ping:    store.Ping,
	})
	gw.SetupRoutes()

	errCh := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	var admin *grpc.AdminServer
	if cfg.GRPC.Enabled {
		admin = grpc.NewAdminServer(&cfg.GRPC, orders, cat, logger.Named("admin"))
		go func() {
			if err := admin.Start(); err != nil {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}

	// Service discovery
	var (
		sd        *discovery.ServiceDiscovery
		instances []*discovery.ServiceInstance
	)
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			instances = append(instances, &discovery.ServiceInstance{
				Name: cfg.Server.Name,
				Host: cfg.Server.Host,
				Port: cfg.Server.Port,
			})
			if cfg.GRPC.Enabled {
				instances = append(instances, &discovery.ServiceInstance{
					Name: cfg.GRPC.Name,
					Host: cfg.GRPC.Host,
					Port: cfg.GRPC.Port,
				})
			}
			for _, inst := range instances {
				if err := sd.Register(ctx, inst); err != nil {
					logger.Warn("Failed to register service", zap.String("name", inst.Name), zap.Error(err))
				}
			}
		}
	}

	logger.Info("Bistro started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sd != nil {
		for _, inst := range instances {
			if err := sd.Deregister(shutdownCtx, inst); err != nil {
				logger.Error("Failed to deregister service", zap.String("name", inst.Name), zap.Error(err))
			}
		}
		sd.Close()
	}

	if admin != nil {
		admin.Stop()
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}

	logger.Info("Bistro stopped")
}
