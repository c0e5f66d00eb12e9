package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/fleetfox/fleetfox/internal/backoff"
	"github.com/fleetfox/fleetfox/internal/metrics"
	"github.com/fleetfox/fleetfox/internal/ratelimit"
	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

// NotifierService fans a verdict out to every matching subscription callback,
// signed and retried with backoff.
type NotifierService interface {
	Deliver(ctx context.Context, ev domain.VerdictEvent)
}

type notifierService struct {
	repo        repository.SubscriptionRepository
	logger      *slog.Logger
	secret      string
	maxAttempts int
	baseSeconds int
	maxSeconds  int
	rng         *rand.Rand

	limiter ratelimit.Limiter
	bucket  ratelimit.Bucket
}

func NewNotifierService(repo repository.SubscriptionRepository, logger *slog.Logger, secret string, maxAttempts, baseSeconds, maxSeconds int, limiter ratelimit.Limiter, bucket ratelimit.Bucket) NotifierService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseSeconds <= 0 {
		baseSeconds = 2
	}
	if maxSeconds <= 0 {
		maxSeconds = 60
	}
	return &notifierService{
		repo:        repo,
		logger:      logger,
		secret:      secret,
		maxAttempts: maxAttempts,
		baseSeconds: baseSeconds,
		maxSeconds:  maxSeconds,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		limiter:     limiter,
		bucket:      bucket,
	}
}

func (n *notifierService) Deliver(ctx context.Context, ev domain.VerdictEvent) {
	subs, err := n.repo.ListActive(ctx, time.Now())
	if err != nil || len(subs) == 0 {
		return
	}

	body, _ := json.Marshal(ev)
	for _, sub := range subs {
		if !sub.Matches(ev) {
			continue
		}
		if ok, _ := n.repo.AllowNotify(ctx, sub.ID, sub.MinIntervalSeconds); !ok {
			continue
		}
		go n.sendWithRetry(ctx, sub.CallbackURL, body)
	}
}

func (n *notifierService) sendWithRetry(ctx context.Context, url string, body []byte) {
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if n.limiter != nil && n.bucket.Enabled() {
			for {
				dec, err := n.limiter.Allow(ctx, "webhook", url, n.bucket)
				if err != nil {
					// Fail open.
					break
				}
				if dec.Allowed {
					break
				}
				metrics.RateLimitHitsTotal.WithLabelValues("webhook").Inc()
				if sleepOrDone(ctx, dec.RetryAfter) != nil {
					return
				}
			}
		}

		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		n.addSignature(req, body)
		resp, err := http.DefaultClient.Do(req)
		if err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		delay := time.Duration(backoff.Compute("exponential", n.baseSeconds, n.maxSeconds, attempt-1, n.rng)) * time.Second
		if sleepOrDone(ctx, delay) != nil {
			return
		}
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	n.logger.Warn("verdict webhook delivery failed", "url", url)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *notifierService) addSignature(req *http.Request, body []byte) {
	if strings.TrimSpace(n.secret) == "" {
		return
	}
	ts := time.Now().UTC().Unix()
	mac := hmac.New(sha256.New, []byte(n.secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	_, _ = mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	req.Header.Set("X-FleetFox-Timestamp", fmt.Sprintf("%d", ts))
	req.Header.Set("X-FleetFox-Signature", sig)
}
