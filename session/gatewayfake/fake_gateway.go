package gatewayfake

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/carefleet/carefleet-client/gateway"
	"github.com/carefleet/carefleet-client/session"
)

var _ session.AuthGateway = (*FakeGateway)(nil)

// FakeGateway scripts gateway responses and counts network calls
type FakeGateway struct {
	LoginFunc    func(ctx context.Context, email, password string) (*gateway.TokenResponse, error)
	RegisterFunc func(ctx context.Context, req gateway.RegisterRequest) error
	VerifyFunc   func(ctx context.Context, token, otp string) (*gateway.TokenResponse, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*gateway.TokenResponse, error)

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	verifyCalls  atomic.Int64
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) Login(ctx context.Context, email, password string) (*gateway.TokenResponse, error) {
	g.loginCalls.Add(1)
	if g.LoginFunc == nil {
		return nil, errors.New("login not scripted")
	}
	return g.LoginFunc(ctx, email, password)
}

func (g *FakeGateway) Register(ctx context.Context, req gateway.RegisterRequest) error {
	if g.RegisterFunc == nil {
		return nil
	}
	return g.RegisterFunc(ctx, req)
}

func (g *FakeGateway) VerifyEmail(ctx context.Context, token, otp string) (*gateway.TokenResponse, error) {
	g.verifyCalls.Add(1)
	if g.VerifyFunc == nil {
		return nil, errors.New("verify not scripted")
	}
	return g.VerifyFunc(ctx, token, otp)
}

func (g *FakeGateway) RefreshToken(ctx context.Context, refreshToken string) (*gateway.TokenResponse, error) {
	g.refreshCalls.Add(1)
	if g.RefreshFunc == nil {
		return nil, errors.New("refresh not scripted")
	}
	return g.RefreshFunc(ctx, refreshToken)
}

func (g *FakeGateway) LoginCalls() int   { return int(g.loginCalls.Load()) }
func (g *FakeGateway) RefreshCalls() int { return int(g.refreshCalls.Load()) }
func (g *FakeGateway) VerifyCalls() int  { return int(g.verifyCalls.Load()) }
