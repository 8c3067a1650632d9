package permission

import "slices"

// Permission is a grantable capability identified by Code, e.g. "task:delay".
type Permission struct {
	ID          string `yaml:"id" json:"id"`
	Code        string `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RoleBinding grants Codes to every user holding Role.
type RoleBinding struct {
	Role  string   `yaml:"role" json:"role"`
	Codes []string `yaml:"codes" json:"codes"`
}

// Normalize sorts and dedupes Codes.
func (b *RoleBinding) Normalize() {
	codes := slices.Clone(b.Codes)
	slices.Sort(codes)
	b.Codes = slices.Compact(codes)
}
