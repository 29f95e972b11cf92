package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewOrderConfig,
	NewSagaCoordinator,
	NewOrderUseCase,
	NewReconcileUseCase,
)
