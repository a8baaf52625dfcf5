package database

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// rbacModel is the RESTful RBAC model: users are grouped into roles, objects
// are either route patterns or named privileged operations.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Default policies. "conversation"/"delete" is the single privileged bulk
// operation of the messaging subsystem; students are deliberately absent.
var defaultPolicies = [][]string{
	{"teacher", "conversation", "delete"},
	{"superadmin", "conversation", "delete"},
	{"superadmin", "/v1/admin*", "(GET)|(POST)|(PUT)|(DELETE)"},
}

// Casbin builds the enforcer over the shared database so role grants survive
// restarts. The model is embedded rather than read from disk so tests can
// build an enforcer against any gorm handle.
func Casbin(db *gorm.DB) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}

	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	for _, p := range defaultPolicies {
		if hasPolicy, _ := e.HasPolicy(p[0], p[1], p[2]); !hasPolicy {
			e.AddPolicy(p[0], p[1], p[2])
		}
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("casbin load policy: %w", err)
	}
	return e, nil
}
