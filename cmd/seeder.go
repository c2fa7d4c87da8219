package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sara-platform/portal/internal/application"
	applicationPostgres "github.com/sara-platform/portal/internal/application/postgres"
	"github.com/sara-platform/portal/internal/auth"
	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	"github.com/sara-platform/portal/internal/hierarchy"
	"github.com/sara-platform/portal/internal/user"
	userPostgres "github.com/sara-platform/portal/internal/user/postgres"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, applications and a bootstrap administrator",
	Long: `Seed the four portal roles, register the PHOENIX and NEXUS applications
with their modules and create a superuser to log in with. Running it twice is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

var (
	seedAdminUsername string
	seedAdminPassword string
	seedAdminEmail    string
)

// seedApplications are the applications the portal ships with.
var seedApplications = []struct {
	Name        string
	Namespace   string
	Description string
	Modules     []application.ModuleSpec
}{
	{
		Name:        "PHOENIX",
		Namespace:   "phoenix",
		Description: "Case analysis",
		Modules: []application.ModuleSpec{
			{Name: "Home", ViewIdentifier: "home"},
			{Name: "Advanced search", ViewIdentifier: "advanced_search"},
		},
	},
	{
		Name:        "NEXUS",
		Namespace:   "nexus",
		Description: "Link analysis",
		Modules: []application.ModuleSpec{
			{Name: "Home", ViewIdentifier: "home"},
		},
	},
}

func runSeed(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := seedRoles(ctx, deps.Gorm); err != nil {
		return err
	}
	fmt.Println("Seeded roles")

	apps := application.NewService(applicationPostgres.NewApplicationRepository(deps.Gorm), deps.Logger)
	for _, a := range seedApplications {
		if _, err := apps.Register(ctx, a.Name, a.Namespace, a.Description, a.Modules); err != nil {
			return err
		}
		fmt.Printf("Registered application %s with %d modules\n", a.Namespace, len(a.Modules))
	}

	password := seedAdminPassword
	if password == "" {
		password = os.Getenv("PORTAL_ADMIN_PASSWORD")
	}
	if password == "" {
		fmt.Println("No administrator password given; skipping bootstrap administrator")
		return nil
	}

	created, err := seedAdministrator(ctx, userPostgres.NewUserRepository(deps.Gorm), seedAdminUsername, seedAdminEmail, password, deps.Config.Security.BCryptCost)
	if err != nil {
		return err
	}
	if created {
		fmt.Println("Seeded administrator:", seedAdminUsername)
	} else {
		fmt.Println("administrator already exists:", seedAdminUsername)
	}
	return nil
}

func seedRoles(ctx context.Context, db *gorm.DB) error {
	for _, role := range []hierarchy.Role{
		hierarchy.RoleAdministrator,
		hierarchy.RoleCoordinator,
		hierarchy.RoleManager,
		hierarchy.RoleUser,
	} {
		var row userDatamodel.Role
		if err := db.WithContext(ctx).Where(userDatamodel.Role{Name: role.String()}).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role, err)
		}
	}
	return nil
}

// seedAdministrator creates an active superuser in the Administrator role
// unless the username is taken. It reports whether a row was written.
func seedAdministrator(ctx context.Context, repo user.RepositoryAPI, username, email, password string, cost int) (bool, error) {
	if username == "" {
		return false, errors.New("administrator username is required")
	}
	exists, err := repo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return false, err
	}
	admin := &userDatamodel.User{
		Username:     username,
		Email:        email,
		FirstName:    "Portal",
		LastName:     "Administrator",
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  true,
		Theme:        user.ThemeLight,
	}
	if err := repo.Create(ctx, admin, hierarchy.RoleAdministrator.String()); err != nil {
		return false, fmt.Errorf("create administrator: %w", err)
	}
	return true, nil
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminUsername, "admin-username", "admin", "username of the bootstrap administrator")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password of the bootstrap administrator (or PORTAL_ADMIN_PASSWORD)")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "", "email of the bootstrap administrator")
}
