package cmd

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sara-platform/portal/internal/auth"
	accessDatamodel "github.com/sara-platform/portal/internal/core/datamodel/access"
	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	userPostgres "github.com/sara-platform/portal/internal/user/postgres"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("seeding", func() {
	var (
		ctx context.Context
		db  *gorm.DB
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&userDatamodel.Role{}, &userDatamodel.User{}, &accessDatamodel.UserModule{})).To(Succeed())
	})

	It("creates the four roles once", func() {
		Expect(seedRoles(ctx, db)).To(Succeed())
		Expect(seedRoles(ctx, db)).To(Succeed())

		var names []string
		Expect(db.Model(&userDatamodel.Role{}).Order("id").Pluck("name", &names).Error).To(Succeed())
		Expect(names).To(Equal([]string{"Administrator", "Coordinator", "Manager", "User"}))
	})

	It("creates an active superuser administrator", func() {
		repo := userPostgres.NewUserRepository(db)

		created, err := seedAdministrator(ctx, repo, "root", "root@example.com", "s3cret-pass", bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		var admin userDatamodel.User
		Expect(db.Preload("Roles").Where("username = ?", "root").First(&admin).Error).To(Succeed())
		Expect(admin.IsActive).To(BeTrue())
		Expect(admin.IsSuperuser).To(BeTrue())
		Expect(admin.Roles).To(HaveLen(1))
		Expect(admin.Roles[0].Name).To(Equal("Administrator"))
		Expect(auth.CheckPassword(admin.PasswordHash, "s3cret-pass")).To(BeTrue())
	})

	It("leaves an existing administrator alone", func() {
		repo := userPostgres.NewUserRepository(db)
		_, err := seedAdministrator(ctx, repo, "root", "", "first", bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())

		created, err := seedAdministrator(ctx, repo, "root", "", "second", bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())

		var admin userDatamodel.User
		Expect(db.Where("username = ?", "root").First(&admin).Error).To(Succeed())
		Expect(auth.CheckPassword(admin.PasswordHash, "first")).To(BeTrue())
	})

	It("requires a username", func() {
		_, err := seedAdministrator(ctx, userPostgres.NewUserRepository(db), "", "", "pw", bcrypt.MinCost)
		Expect(err).To(MatchError(ContainSubstring("username is required")))
	})
})
