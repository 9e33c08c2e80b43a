package authz

import (
	"fmt"

	"github.com/stampcard-next/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 店员预置角色：收银员只能核销，店主额外审核集点流水
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.StaffRoleCashier,
			Policies: []Policy{
				{Object: "/staff/redemptions/verify", Action: "POST"},
				{Object: "/staff/me", Action: "GET"},
			},
		},
		{
			Role:     constants.StaffRoleOwner,
			Inherits: []string{constants.StaffRoleCashier},
			Policies: []Policy{
				{Object: "/staff/stamp-transactions", Action: "GET"},
				{Object: "/staff/stamp-transactions/:id/approve", Action: "POST"},
				{Object: "/staff/stamp-transactions/:id/reject", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return fmt.Errorf("create builtin role failed: %w", err)
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
