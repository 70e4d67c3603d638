package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wgdzlh/mqdispatch"
	"github.com/wgdzlh/mqdispatch/log"
	"github.com/wgdzlh/mqdispatch/rabbit"
	"github.com/wgdzlh/mqdispatch/rocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type sendFunc func(ctx context.Context, msg *mqdispatch.Message) error

var (
	transport   string
	count       int
	concurrency int
	topic       string
	tag         string
	body        string
	metricsAddr string
)

func init() {
	rootCmd.AddCommand(publishCmd)
	f := publishCmd.Flags()
	f.StringVarP(&transport, "transport", "t", "amqp", "amqp or rocketmq")
	f.IntVarP(&count, "count", "n", 1, "number of messages")
	f.IntVar(&concurrency, "concurrency", 1, "number of publishing goroutines sharing the dispatcher")
	f.StringVar(&topic, "topic", "", "exchange (amqp) or topic (rocketmq)")
	f.StringVar(&tag, "tag", "", "routing key (amqp) or tag (rocketmq)")
	f.StringVar(&body, "body", "hello", "message body, suffixed with the message index")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while publishing")
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish messages from concurrent goroutines through one dispatcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if metricsAddr != "" {
			go func() {
				if err := http.ListenAndServe(metricsAddr, promhttp.Handler()); err != nil {
					log.Error("metrics server stopped", zap.Error(err))
				}
			}()
		}
		send, shutdown, err := newSender(cfg)
		if err != nil {
			return err
		}
		defer shutdown()
		ok, failed, elapsed := publish(cmd.Context(), send)
		fmt.Fprintf(cmd.OutOrStdout(), "published %d, failed %d in %s\n", ok, failed, elapsed.Round(time.Millisecond))
		if failed > 0 {
			return fmt.Errorf("%d messages failed", failed)
		}
		return nil
	},
}

func newSender(cfg *mqdispatch.Config) (send sendFunc, shutdown func(), err error) {
	opts := []mqdispatch.Option{
		mqdispatch.WithName(transport),
		mqdispatch.WithRegisterer(prometheus.DefaultRegisterer),
	}
	switch transport {
	case "amqp":
		var bus *rabbit.Bus
		if bus, err = rabbit.NewBus(cfg, opts...); err != nil {
			return
		}
		return bus.Publish, bus.Shutdown, nil
	case "rocketmq":
		var c *rocket.Client
		if c, err = rocket.NewClient(cfg, opts...); err != nil {
			return
		}
		send = func(ctx context.Context, msg *mqdispatch.Message) error {
			_, err := c.SendMessage(ctx, msg)
			return err
		}
		return send, c.Shutdown, nil
	default:
		err = fmt.Errorf("unknown transport %q", transport)
		return
	}
}

func publish(ctx context.Context, send sendFunc) (ok, failed int64, elapsed time.Duration) {
	if concurrency < 1 {
		concurrency = 1
	}
	var (
		wg   sync.WaitGroup
		next int64 = -1
	)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&next, 1)
				if i >= int64(count) {
					return
				}
				msg := &mqdispatch.Message{
					Topic:       topic,
					Tag:         tag,
					ContentType: "text/plain",
					Body:        []byte(body + " " + strconv.FormatInt(i, 10)),
				}
				if err := send(ctx, msg); err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn("publish failed", zap.Int64("index", i), zap.Error(err))
					continue
				}
				atomic.AddInt64(&ok, 1)
			}
		}()
	}
	wg.Wait()
	return ok, failed, time.Since(start)
}
