// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/browser/stealth"
	"github.com/xkilldash9x/campaign-probe/internal/market"
)

// -- Browser Session Mock --

// MockSession mocks a browser tab: the capture.Session capabilities plus the
// page actions journeys and the runner use.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) ApplyPersona(ctx context.Context, p stealth.Persona) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockSession) EnableNetworkLogging(ctx context.Context, maxPostDataSize int64) error {
	args := m.Called(ctx, maxPostDataSize)
	return args.Error(0)
}

func (m *MockSession) DrainPerformanceLog(ctx context.Context) ([]schemas.LogEntry, error) {
	args := m.Called(ctx)
	var entries []schemas.LogEntry
	if v := args.Get(0); v != nil {
		entries = v.([]schemas.LogEntry)
	}
	return entries, args.Error(1)
}

func (m *MockSession) GetResponseBody(ctx context.Context, requestID string) (string, error) {
	args := m.Called(ctx, requestID)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	args := m.Called(ctx, selector, timeout)
	return args.Error(0)
}

func (m *MockSession) Click(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

// Evaluate records the call. Tests fill res through mock.Run.
func (m *MockSession) Evaluate(ctx context.Context, expression string, res interface{}) error {
	args := m.Called(ctx, expression, res)
	return args.Error(0)
}

func (m *MockSession) Sleep(ctx context.Context, d time.Duration) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockSession) WaitReady(ctx context.Context, timeout time.Duration) error {
	args := m.Called(ctx, timeout)
	return args.Error(0)
}

func (m *MockSession) AcceptCookies(ctx context.Context, timeout time.Duration) error {
	args := m.Called(ctx, timeout)
	return args.Error(0)
}

func (m *MockSession) ScrollIntoView(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockSession) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var buf []byte
	if v := args.Get(0); v != nil {
		buf = v.([]byte)
	}
	return buf, args.Error(1)
}

func (m *MockSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Deeplinks Resolver Mock --

// MockResolver mocks the deeplinks lookups the runner performs.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) VehicleURLs(ctx context.Context, loc market.Locale, modelCode string) (schemas.VehicleURLs, error) {
	args := m.Called(ctx, loc, modelCode)
	return args.Get(0).(schemas.VehicleURLs), args.Error(1)
}

func (m *MockResolver) ModelSeries(ctx context.Context, loc market.Locale) ([]string, error) {
	args := m.Called(ctx, loc)
	var codes []string
	if v := args.Get(0); v != nil {
		codes = v.([]string)
	}
	return codes, args.Error(1)
}
