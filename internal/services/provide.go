package services

import "github.com/samber/do"

// ProvideServices registers every service constructor. Infrastructure
// (gateway, status, clock, settings, locker, limiter, cache, catalog, quest
// rotation) must be provided by the caller.
func ProvideServices(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ServiceProgress, error) {
		return NewServiceProgress(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceLeaderboard, error) {
		return NewServiceLeaderboard(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceAudit, error) {
		return NewServiceAudit(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceReplay, error) {
		return NewServiceReplay(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceEconomy, error) {
		return NewServiceEconomy(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServicePayout, error) {
		return NewServicePayout(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceSLO, error) {
		return NewServiceSLO(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceAdmin, error) {
		return NewServiceAdmin(i)
	})

	do.Provide(injector, func(i *do.Injector) (*ServiceDiagnostics, error) {
		return NewServiceDiagnostics(i)
	})
}
