package models

import "fmt"

// TenantContext identifies the isolation unit every operation runs under.
// Every read and write carries one; no operation is tenant-ambiguous.
type TenantContext struct {
	TenantID    string            `json:"tenant_id"`
	UserID      string            `json:"user_id,omitempty"`
	Permissions []string          `json:"permissions,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewTenantContext builds a context for the given tenant.
func NewTenantContext(tenantID string) *TenantContext {
	return &TenantContext{TenantID: tenantID}
}

// Validate rejects contexts without a tenant id.
func (t *TenantContext) Validate() error {
	if t == nil || t.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	return nil
}

// HasPermission reports whether the context carries the named permission.
// An empty permission list means unrestricted access.
func (t *TenantContext) HasPermission(name string) bool {
	if len(t.Permissions) == 0 {
		return true
	}
	for _, p := range t.Permissions {
		if p == name || p == "*" {
			return true
		}
	}
	return false
}
