// Package pricing groups comparable rental properties and turns each
// group's median rent into tiered price recommendations.
//
// An Engine is fitted once over a cleaned batch: features are standardized,
// partitioned with k-means, profiled per group and optionally scored for
// anomalies. The fitted state is published as an immutable Snapshot, so
// Recommend may be called from many goroutines while a later Fit swaps in a
// replacement.
package pricing
