// Package health aggregates the health of guarded components and
// exposes it over HTTP.
//
// CacheChecker and PoolChecker read a guard's degradation state and
// counters; Aggregator runs any number of checkers in parallel under a
// shared deadline and folds their results into one overall status.
// Degraded components do not fail readiness: fallbacks are serving.
//
// Typical usage:
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.NewCacheChecker(rc, health.CacheCheckerConfig{}))
//	agg.Register("pool", health.NewPoolChecker(rp))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
