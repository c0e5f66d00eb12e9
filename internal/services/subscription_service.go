package services

import (
	"context"
	"errors"
	"net/url"

	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

type SubscriptionService interface {
	Create(ctx context.Context, callbackURL, foxID, clientID string, ttlSeconds, minIntervalSeconds int) (*domain.Subscription, error)
}

type subscriptionService struct {
	repo       repository.SubscriptionRepository
	defaultTTL int
	minNotify  int
}

func NewSubscriptionService(repo repository.SubscriptionRepository, defaultTTLSeconds, minIntervalSeconds int) SubscriptionService {
	if defaultTTLSeconds <= 0 {
		defaultTTLSeconds = 3600
	}
	if minIntervalSeconds <= 0 {
		minIntervalSeconds = 5
	}
	return &subscriptionService{repo: repo, defaultTTL: defaultTTLSeconds, minNotify: minIntervalSeconds}
}

func (s *subscriptionService) Create(ctx context.Context, callbackURL, foxID, clientID string, ttlSeconds, minIntervalSeconds int) (*domain.Subscription, error) {
	if callbackURL == "" {
		return nil, errors.New("callbackUrl is required")
	}
	u, err := url.Parse(callbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("invalid callback url")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = s.defaultTTL
	}
	if minIntervalSeconds <= 0 {
		minIntervalSeconds = s.minNotify
	}

	sub := domain.Subscription{
		CallbackURL:        callbackURL,
		FoxID:              foxID,
		ClientID:           clientID,
		MinIntervalSeconds: minIntervalSeconds,
	}
	return s.repo.Create(ctx, sub, ttlSeconds)
}
