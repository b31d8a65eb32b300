package main

import (
	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/cascade"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/config"
	"github.com/alecgard/cascade/internal/database"
	"github.com/alecgard/cascade/internal/hierarchy"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/user"
	"github.com/alecgard/cascade/internal/work"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the pool-bound stores and the services built on them.
type app struct {
	users       *user.Store
	companies   *company.Store
	departments *company.DepartmentStore
	roles       *role.Store
	tasks       *work.TaskStore
	objectives  *work.ObjectiveStore

	tokens      *auth.TokenService
	engine      *hierarchy.Engine
	coordinator *cascade.Coordinator
}

func newApp(cfg *config.Config, pool *pgxpool.Pool) *app {
	a := &app{
		users:       user.NewStore(pool),
		companies:   company.NewStore(pool),
		departments: company.NewDepartmentStore(pool),
		roles:       role.NewStore(pool),
		tasks:       work.NewTaskStore(pool),
		objectives:  work.NewObjectiveStore(pool),
	}

	a.tokens = auth.NewTokenService(auth.TokenConfig{
		Secret:         cfg.Auth.JWTSecret,
		AccessTTL:      cfg.Auth.AccessTokenTTL,
		RefreshTTL:     cfg.Auth.RefreshTokenTTL,
		RotationBuffer: cfg.Auth.RefreshRotationBuffer,
	}, user.NewAuthAdapter(a.users))

	a.engine = hierarchy.NewEngine(database.NewTransactor(pool, func(q database.Querier) hierarchy.Stores {
		return hierarchy.Stores{
			Roles:       role.NewStore(q),
			Departments: company.NewDepartmentStore(q),
			Users:       user.NewStore(q),
		}
	}))

	a.coordinator = cascade.NewCoordinator(database.NewTransactor(pool, func(q database.Querier) cascade.Stores {
		return cascade.Stores{
			Companies:   company.NewStore(q),
			Departments: company.NewDepartmentStore(q),
			Roles:       role.NewStore(q),
			Tasks:       work.NewTaskStore(q),
			Objectives:  work.NewObjectiveStore(q),
			Users:       user.NewStore(q),
		}
	}), a.tokens)

	return a
}
