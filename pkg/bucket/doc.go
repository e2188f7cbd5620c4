// Package bucket implements deterministic hash bucketing for feature flag
// rollouts and experiment variant assignment.
//
// Every function in this package is pure: the same identifier and salt
// always land in the same bucket, in every process and every release. The
// salt is a per-flag random value which decorrelates assignments between
// flags, so a user in the first 10% of one rollout is not automatically in
// the first 10% of every other rollout.
//
// # Buckets
//
// Bucket maps an (identifier, salt) pair to an integer in [0,100):
//
//	b := bucket.Bucket("user-42", flag.Salt)
//
// InRollout compares that bucket with a percentage. A percentage of 0 is
// always off and 100 is always on, independent of the hash value:
//
//	if bucket.InRollout("user-42", flag.Salt, 25) {
//		// user is in the 25% rollout
//	}
//
// # Variants
//
// SelectVariant normalises variant weights to a cumulative distribution over
// [0,100) and picks the variant whose range contains the bucket. Weights need
// not sum to 100:
//
//	key, err := bucket.SelectVariant("user-42", flag.Salt, []bucket.Weighted{
//		{Key: "control", Weight: 2},
//		{Key: "treatment", Weight: 1},
//	})
//
// Rollout and variant selection read the same bucket value for a given flag
// and identity.
//
// # Salts
//
// GenerateSalt returns 32 lowercase hex characters drawn from crypto/rand.
// A salt is generated once when a flag is created and must never change
// afterwards: a new salt silently re-buckets every existing user.
package bucket
