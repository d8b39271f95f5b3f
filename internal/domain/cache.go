package domain

import "time"

// CacheMaxAge is how long a dependency cache entry stays valid.
const CacheMaxAge = 24 * time.Hour

// CacheKey builds the dependency cache key: name@version|detectorHash|sdkVersion.
func CacheKey(packageName, packageVersion, detectorHash, sdkVersion string) string {
	return packageName + "@" + packageVersion + "|" + detectorHash + "|" + sdkVersion
}

// IsExpired reports whether an entry cached at cachedAt is stale at now.
func IsExpired(cachedAt, now time.Time) bool {
	return now.Sub(cachedAt) > CacheMaxAge
}
