// Package util provides small helpers shared by engines, stores and the coordinator.
//
// The package contains:
//   - functions: HashString and Bucket, a seeded FNV-1a hash for shard selection and replica ids
//   - clock: the Clock abstraction with SystemClock for production and ManualClock for
//     tests that need to move time forward without sleeping
package util
