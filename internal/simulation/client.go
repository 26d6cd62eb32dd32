package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// Client posts simulated data to the server's ingestion API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: %s: %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

func (c *Client) SendPackets(ctx context.Context, packets []models.PacketRecord) error {
	if len(packets) == 0 {
		return nil
	}
	return c.post(ctx, "/api/traffic/ingest", packets)
}

func (c *Client) SendStats(ctx context.Context, snap models.TrafficSnapshot) error {
	return c.post(ctx, "/api/stats", snap)
}

func (c *Client) SendNode(ctx context.Context, spec NodeSpec) error {
	return c.post(ctx, "/api/topology/nodes", struct {
		models.TopologyNode
		Connections []string `json:"connections"`
	}{spec.Node, spec.Connections})
}

// Options configures a Runner.
type Options struct {
	Interval      time.Duration
	NormalPackets int
	AttackPackets int
	Schedule      Schedule
}

// Runner drives the server with generated traffic once per interval.
type Runner struct {
	client *Client
	gen    *Generator
	opts   Options
	logger *zap.Logger
}

func NewRunner(client *Client, gen *Generator, opts Options, logger *zap.Logger) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Runner{client: client, gen: gen, opts: opts, logger: logger.Named("simulator")}
}

// Run publishes the demo topology and then sends one batch per interval
// until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	for _, spec := range DemoTopology() {
		if err := r.client.SendNode(ctx, spec); err != nil {
			return fmt.Errorf("publish topology: %w", err)
		}
	}
	r.logger.Info("demo topology published")

	start := time.Now()
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	attacking := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		active := r.opts.Schedule.Active(time.Since(start))
		if active != attacking {
			attacking = active
			if attacking {
				r.logger.Warn("starting attack phase")
			} else {
				r.logger.Info("attack phase stopped")
			}
		}
		if err := r.Step(ctx, attacking); err != nil {
			r.logger.Warn("send failed", zap.Error(err))
		}
	}
}

// Step sends one stats snapshot and one packet batch.
func (r *Runner) Step(ctx context.Context, attack bool) error {
	count := r.opts.NormalPackets
	if attack {
		count = r.opts.AttackPackets
	}
	if err := r.client.SendStats(ctx, r.gen.Stats(attack)); err != nil {
		return err
	}
	return r.client.SendPackets(ctx, r.gen.Packets(count, attack))
}
