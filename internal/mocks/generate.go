// Package mocks provides gomock-generated doubles for the auth ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	idp := mocks.NewMockIdentityProvider(ctrl)
//	idp.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(result, nil)
package mocks

// IdentityProvider: AuthCodeURL, Exchange, EndSessionURL
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/target/mmk-auth-bridge/internal/ports IdentityProvider

// SessionStore: Create, Get, Destroy
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/target/mmk-auth-bridge/internal/ports SessionStore

// FlowStore: Put, Take
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=flow_store_mock.go github.com/target/mmk-auth-bridge/internal/ports FlowStore
