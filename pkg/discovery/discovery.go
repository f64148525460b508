package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/example/bistro/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const leaseTTLSeconds = 30

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

// Addr is the host:port form stored as the registration value.
func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func (sd *ServiceDiscovery) key(instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", sd.config.Prefix, instance.Name, instance.Addr())
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
		cancel: make(map[string]context.CancelFunc),
	}, nil
}

// Register publishes instance under a leased key and keeps the lease alive
// until Deregister or Close.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	key := sd.key(instance)

	lease, err := sd.client.Grant(ctx, leaseTTLSeconds)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, key, instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, kaerr := sd.client.KeepAlive(kaCtx, lease.ID)
	if kaerr != nil {
		cancel()
		return fmt.Errorf("failed to keep alive: %w", kaerr)
	}

	sd.mu.Lock()
	sd.cancel[key] = cancel
	sd.mu.Unlock()

	go func() {
		for range ch {
		}
		sd.logger.Debug("Lease keep-alive ended", zap.String("key", key))
	}()

	sd.logger.Info("Service registered in etcd",
		zap.String("name", instance.Name),
		zap.String("address", instance.Addr()))
	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	prefix := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var instances []*ServiceInstance
	for _, kv := range resp.Kvs {
		inst, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed registration", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, inst)
	}

	return instances, nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	key := sd.key(instance)

	sd.mu.Lock()
	if cancel, ok := sd.cancel[key]; ok {
		cancel()
		delete(sd.cancel, key)
	}
	sd.mu.Unlock()

	if _, err := sd.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	sd.mu.Lock()
	for key, cancel := range sd.cancel {
		cancel()
		delete(sd.cancel, key)
	}
	sd.mu.Unlock()
	return sd.client.Close()
}

// parseInstance reads a "host:port" registration value.
func parseInstance(name, value string) (*ServiceInstance, error) {
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return &ServiceInstance{Name: name, Host: host, Port: port}, nil
}
