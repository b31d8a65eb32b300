package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/config"
	"github.com/alecgard/cascade/internal/database"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/user"
	"github.com/alecgard/cascade/internal/work"
	"github.com/spf13/cobra"
)

const (
	demoEmail    = "admin@cascade.local"
	demoPassword = "cascade-demo"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo user, company and role hierarchy",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		// Only used to sign the throwaway token CreateCompany returns.
		cfg.Auth.JWTSecret = "seed"
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL, 2, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	a := newApp(cfg, pool)

	// Check if seed has already run.
	if _, err := a.users.GetByEmail(ctx, demoEmail); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("checking existing user: %w", err)
	}

	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	admin, err := a.users.Create(ctx, user.CreateUserInput{
		FirstName:    "Demo",
		LastName:     "Admin",
		Email:        demoEmail,
		PasswordHash: hash,
		WebAppRole:   user.RegularUser,
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}

	created, err := a.coordinator.CreateCompany(ctx, admin.ID, company.CreateCompanyInput{
		Name:             "Demo Company",
		SubscriptionPlan: company.PlanFree,
	})
	if err != nil {
		return fmt.Errorf("creating demo company: %w", err)
	}
	dept := created.Company.CompanyDepartments[0]

	admins, err := a.roles.ListByDepartment(ctx, dept.DepartmentID)
	if err != nil {
		return fmt.Errorf("loading admin role: %w", err)
	}
	if len(admins) == 0 {
		return errors.New("demo company has no admin role")
	}

	manager, err := a.engine.CreateRole(ctx, dept.DepartmentID, role.CreateRoleInput{
		UserID:         admin.ID,
		HierarchyLevel: role.LevelManager,
		JobTitle:       "Engineering Manager",
		SupervisedBy:   []string{admins[0].ID},
	})
	if err != nil {
		return fmt.Errorf("creating manager role: %w", err)
	}

	employee, err := a.engine.CreateRole(ctx, dept.DepartmentID, role.CreateRoleInput{
		HierarchyLevel: role.LevelEmployee,
		JobTitle:       "Software Engineer",
		SupervisedBy:   []string{manager.ID},
	})
	if err != nil {
		return fmt.Errorf("creating employee role: %w", err)
	}

	task, err := a.tasks.Create(ctx, manager.ID, work.TaskInput{
		Title:            "Onboard the new engineer",
		AssignedRolesIDs: []string{employee.ID},
		Priority:         work.PriorityHigh,
	})
	if err != nil {
		return fmt.Errorf("creating demo task: %w", err)
	}

	slog.Info("seeded demo data", "user_id", admin.ID, "company_id", created.Company.ID, "task_id", task.ID)
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("User:       %s / %s\n", demoEmail, demoPassword)
	fmt.Printf("Company:    %s (%s)\n", created.Company.Name, created.Company.ID)
	fmt.Printf("Department: %s (%s)\n", dept.DepartmentName, dept.DepartmentID)
	fmt.Printf("Roles:      admin %s, manager %s, employee %s\n", admins[0].ID, manager.ID, employee.ID)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST -H 'Content-Type: application/json' -d '{\"email\":%q,\"password\":%q}' http://localhost:8080/auth/login\n", demoEmail, demoPassword)

	return nil
}
