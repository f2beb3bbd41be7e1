// Package gateway implements the offline agent's request interception policy.
//
// The Gateway is consulted for every outbound request of the application it
// fronts. It decides cache-or-network per request against a single current
// cache generation:
//
//   - non-GET requests and requests matching an exclusion pattern pass
//     straight through to the network and never touch the cache
//   - a cache hit is answered from the stored snapshot with no network call
//   - a miss goes to the network; a 200 same-origin, non-redirected response
//     is captured into the generation before it is returned
//   - a network failure falls back to the cached shell document, and
//     propagates as a *NetworkError when the shell is not cached either
//
// Install pre-populates the generation named by the version tag with a seed
// set of resources (all-or-nothing). Activate purges every other generation;
// bumping the version tag is the only way cached entries are invalidated.
//
// Example usage:
//
//	gw, err := gateway.New(cache.NewRedisStore(redisClient), http.DefaultClient, gateway.Config{
//		Version: "offline-cache-v2",
//		Origin:  "https://app.example.com",
//		Seeds:   []string{"/", "/index.html", "/manifest.json"},
//		Exclude: []string{"generativelanguage.googleapis.com"},
//	})
//	if err := gw.Install(ctx); err != nil {
//		return err
//	}
//	if err := gw.Activate(ctx); err != nil {
//		return err
//	}
//	resp, err := gw.Intercept(req)
package gateway
