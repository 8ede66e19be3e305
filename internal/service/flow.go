package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

// DefaultExchangeTimeout bounds the code-for-token round trip.
const DefaultExchangeTimeout = 15 * time.Second

// flowRetention is how long a store keeps a flow past its TTL, so a late
// callback is answered as expired rather than as unknown.
const flowRetention = time.Minute

// FlowCoordinatorOptions groups dependencies for FlowCoordinator.
type FlowCoordinatorOptions struct {
	Provider        ports.IdentityProvider // Required
	Flows           ports.FlowStore        // Required
	FlowTTL         time.Duration          // Optional: defaults to domainauth.DefaultFlowTTL
	ExchangeTimeout time.Duration          // Optional: defaults to DefaultExchangeTimeout
	Now             func() time.Time       // Optional: defaults to time.Now
	Logger          *slog.Logger           // Optional
}

// FlowCoordinator runs the authorization-code + PKCE flow: it creates the per-attempt
// FlowState, and on callback consumes it exactly once before exchanging the code.
type FlowCoordinator struct {
	provider        ports.IdentityProvider
	flows           ports.FlowStore
	flowTTL         time.Duration
	exchangeTimeout time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

// NewFlowCoordinator constructs a FlowCoordinator.
func NewFlowCoordinator(opts FlowCoordinatorOptions) (*FlowCoordinator, error) {
	if opts.Provider == nil {
		return nil, errors.New("IdentityProvider is required")
	}
	if opts.Flows == nil {
		return nil, errors.New("FlowStore is required")
	}
	c := &FlowCoordinator{
		provider:        opts.Provider,
		flows:           opts.Flows,
		flowTTL:         opts.FlowTTL,
		exchangeTimeout: opts.ExchangeTimeout,
		now:             opts.Now,
		logger:          opts.Logger,
	}
	if c.flowTTL <= 0 {
		c.flowTTL = domainauth.DefaultFlowTTL
	}
	if c.exchangeTimeout <= 0 {
		c.exchangeTimeout = DefaultExchangeTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "flow_coordinator")
	return c, nil
}

// FlowTTL reports how long an initiated flow stays valid.
func (c *FlowCoordinator) FlowTTL() time.Duration { return c.flowTTL }

// InitiateInput describes a new login attempt.
type InitiateInput struct {
	Scopes      []string
	RedirectURI string
	ReturnTo    string
}

// InitiateResult is what the caller needs to send the browser to the provider.
// FlowKey must be handed back on the callback (the HTTP layer keeps it in a cookie).
type InitiateResult struct {
	FlowKey string
	AuthURL string
	Flow    domainauth.FlowState
}

// Initiate creates and stores a fresh FlowState and returns the provider authorization URL.
func (c *FlowCoordinator) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	if in.RedirectURI == "" {
		return InitiateResult{}, apperrors.ValidationField("redirect_uri", "redirect URI is required")
	}

	state, err := cryptoutil.RandomToken(cryptoutil.TokenBytes)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := cryptoutil.RandomToken(cryptoutil.TokenBytes)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("generate nonce: %w", err)
	}
	flowKey, err := cryptoutil.RandomToken(cryptoutil.TokenBytes)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("generate flow key: %w", err)
	}

	flow := domainauth.FlowState{
		State:        state,
		Nonce:        nonce,
		PKCEVerifier: oauth2.GenerateVerifier(),
		Scopes:       append([]string(nil), in.Scopes...),
		RedirectURI:  in.RedirectURI,
		ReturnTo:     in.ReturnTo,
		CreatedAt:    c.now(),
	}

	authURL, err := c.provider.AuthCodeURL(ports.AuthRequest{
		State:        flow.State,
		Nonce:        flow.Nonce,
		PKCEVerifier: flow.PKCEVerifier,
		Scopes:       flow.Scopes,
		RedirectURI:  flow.RedirectURI,
	})
	if err != nil {
		return InitiateResult{}, fmt.Errorf("build authorization url: %w", err)
	}

	if err := c.flows.Put(ctx, flowKey, flow, c.flowTTL+flowRetention); err != nil {
		return InitiateResult{}, fmt.Errorf("store flow: %w", err)
	}
	return InitiateResult{FlowKey: flowKey, AuthURL: authURL, Flow: flow}, nil
}

// CompleteResult is a successful exchange plus where the browser should land.
type CompleteResult struct {
	Provider domainauth.ProviderTokenResult
	ReturnTo string
}

// Complete validates the callback against the stored flow and exchanges the code.
// The flow is consumed before any check runs, so it can never be completed twice and
// every failure leaves nothing behind. Errors carry the codes no_active_flow,
// csrf_or_expired, provider_rejected or provider_unreachable.
func (c *FlowCoordinator) Complete(
	ctx context.Context,
	flowKey string,
	params domainauth.CallbackParams,
) (CompleteResult, error) {
	if flowKey == "" {
		return CompleteResult{}, apperrors.NoActiveFlow("no login in progress")
	}

	flow, ok, err := c.flows.Take(ctx, flowKey)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("take flow: %w", err)
	}
	if !ok {
		return CompleteResult{}, apperrors.NoActiveFlow("no login in progress")
	}
	if err := flow.Validate(); err != nil {
		c.logger.WarnContext(ctx, "discarding malformed flow", "error", err)
		return CompleteResult{}, apperrors.NoActiveFlow("no login in progress")
	}
	if flow.ExpiredAt(c.now(), c.flowTTL) {
		return CompleteResult{}, apperrors.CsrfOrExpired("login attempt expired")
	}
	if !cryptoutil.Equal(params.State, flow.State) {
		c.logger.WarnContext(ctx, "callback state mismatch")
		return CompleteResult{}, apperrors.CsrfOrExpired("state does not match the login in progress")
	}
	if params.Error != "" {
		c.logger.InfoContext(ctx, "provider returned an error", "error_code", params.Error)
		return CompleteResult{}, apperrors.ProviderRejected(params.Error, params.ErrorDescription, nil)
	}
	if params.Code == "" {
		return CompleteResult{}, apperrors.ProviderRejected("invalid_request", "authorization code is missing", nil)
	}

	res, err := c.exchange(ctx, flow, params.Code)
	if err != nil {
		return CompleteResult{}, err
	}
	return CompleteResult{Provider: res, ReturnTo: flow.ReturnTo}, nil
}

func (c *FlowCoordinator) exchange(
	ctx context.Context,
	flow domainauth.FlowState,
	code string,
) (domainauth.ProviderTokenResult, error) {
	exCtx, cancel := context.WithTimeout(ctx, c.exchangeTimeout)
	defer cancel()

	res, err := c.provider.Exchange(exCtx, ports.ExchangeInput{
		Code:         code,
		PKCEVerifier: flow.PKCEVerifier,
		Nonce:        flow.Nonce,
		RedirectURI:  flow.RedirectURI,
	})
	if err == nil {
		return res, nil
	}

	switch {
	case apperrors.GetCode(err) != "":
		c.logger.WarnContext(ctx, "code exchange failed", "code", apperrors.GetCode(err))
		return domainauth.ProviderTokenResult{}, err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(exCtx.Err(), context.DeadlineExceeded):
		c.logger.WarnContext(ctx, "code exchange timed out", "timeout", c.exchangeTimeout)
		return domainauth.ProviderTokenResult{}, apperrors.ProviderUnreachable(err)
	default:
		return domainauth.ProviderTokenResult{}, fmt.Errorf("exchange authorization code: %w", err)
	}
}
