package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/discovery"
	"github.com/example/bistro/pkg/grpc"
	"github.com/example/bistro/pkg/logging"
	"github.com/example/bistro/pkg/models"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Usage: bistroctl [flags] <command> [args]

Commands:
  orders                          list all orders (--active for the kitchen view)
  status <order_id> <status>      set Accepted, Completed, Rejected or Paid
  config                          show the runtime config
  config <cutoff> <visibility>    replace the runtime config (minutes)
  menu <file.json>                replace the menu document

Flags:
`

func main() {
	flags := pflag.NewFlagSet("bistroctl", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "config/config.yaml", "path to the YAML config file")
	target := flags.String("target", "", "admin service address; skips etcd discovery")
	active := flags.Bool("active", false, "only list orders the kitchen still sees")
	timeout := flags.Duration("timeout", 5*time.Second, "per-call timeout")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(fmt.Errorf("failed to load config: %w", err))
	}
	// Diagnostics go to stderr so stdout stays JSON.
	cfg.Log.OutputPaths = []string{"stderr"}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fail(fmt.Errorf("failed to create logger: %w", err))
	}
	defer logger.Sync()

	var sd *discovery.ServiceDiscovery
	if *target == "" && cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, using configured address", zap.Error(err))
			sd = nil
		} else {
			defer sd.Close()
		}
	}

	client := grpc.NewClientManager(cfg, logger, sd)
	if *target != "" {
		client.WithTarget(*target)
	}
	if err := client.Connect(); err != nil {
		fail(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := run(ctx, client, args, *active)
	if err != nil {
		fail(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, client *grpc.ClientManager, args []string, active bool) (any, error) {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "orders":
		return client.ListOrders(ctx, active)

	case "status":
		if len(rest) != 2 {
			return nil, fmt.Errorf("status needs <order_id> <status>")
		}
		return client.UpdateOrderStatus(ctx, rest[0], models.OrderStatus(rest[1]))

	case "config":
		switch len(rest) {
		case 0:
			return client.GetConfig(ctx)
		case 2:
			cutoff, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("invalid cutoff %q: %w", rest[0], err)
			}
			visibility, err := strconv.Atoi(rest[1])
			if err != nil {
				return nil, fmt.Errorf("invalid visibility %q: %w", rest[1], err)
			}
			return client.SetConfig(ctx, models.Config{
				CancellationCutoffMinutes: cutoff,
				PaidVisibilityMinutes:     visibility,
			})
		default:
			return nil, fmt.Errorf("config takes zero or two arguments")
		}

	case "menu":
		if len(rest) != 1 {
			return nil, fmt.Errorf("menu needs <file.json>")
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			return nil, err
		}
		var menu models.Menu
		if err := json.Unmarshal(data, &menu); err != nil {
			return nil, fmt.Errorf("invalid menu file: %w", err)
		}
		if err := client.ReplaceMenu(ctx, menu); err != nil {
			return nil, err
		}
		return map[string]string{"message": "Menu updated successfully"}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "bistroctl:", err)
	os.Exit(1)
}
