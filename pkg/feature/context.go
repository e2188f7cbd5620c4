package feature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// EvaluationContext describes who a flag is evaluated for.
// It is supplied by the caller per evaluation and never stored.
type EvaluationContext struct {
	TenantID      string         `json:"tenant_id"`
	UserID        string         `json:"user_id,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	EnvironmentID string         `json:"environment_id,omitempty"`
}

// HashIdentity returns the identity string used for bucketing.
// UserID wins, then TenantID, so tenant-scoped evaluations stay sticky per
// tenant. Without either, a fingerprint of the attributes is used; the
// result is empty when there is nothing to identify the caller by.
func (c EvaluationContext) HashIdentity() string {
	if c.UserID != "" {
		return c.UserID
	}
	if c.TenantID != "" {
		return c.TenantID
	}
	return c.Fingerprint()
}

// Fingerprint returns a stable 32-character hex digest of the attributes and
// environment, or an empty string when there are no attributes.
func (c EvaluationContext) Fingerprint() string {
	if len(c.Attributes) == 0 {
		return ""
	}

	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Attributes[k]))
	}
	if c.EnvironmentID != "" {
		parts = append(parts, "env="+c.EnvironmentID)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}
