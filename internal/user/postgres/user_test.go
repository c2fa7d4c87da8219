package postgres_test

import (
	"context"
	"testing"

	accessDatamodel "github.com/sara-platform/portal/internal/core/datamodel/access"
	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	"github.com/sara-platform/portal/internal/user"
	userPostgres "github.com/sara-platform/portal/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUserPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Postgres Suite")
}

var _ = Describe("User Repository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo user.RepositoryAPI
	)

	create := func(username, role string) *userDatamodel.User {
		u := &userDatamodel.User{Username: username, PasswordHash: "x", IsActive: true, Theme: "light"}
		Expect(repo.Create(ctx, u, role)).To(Succeed())
		Expect(u.ID).NotTo(BeZero())
		return u
	}

	usernames := func(users []*userDatamodel.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.Username)
		}
		return out
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		err = db.AutoMigrate(&userDatamodel.Role{}, &userDatamodel.User{}, &accessDatamodel.UserModule{})
		Expect(err).NotTo(HaveOccurred())

		repo = userPostgres.NewUserRepository(db)
	})

	It("creates users with their role and reuses existing roles", func() {
		create("ana", "Administrator")
		create("bea", "User")
		create("cid", "User")

		var count int64
		Expect(db.Model(&userDatamodel.Role{}).Count(&count).Error).To(Succeed())
		Expect(count).To(Equal(int64(2)))

		got, err := repo.GetByID(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Roles).To(HaveLen(1))
		Expect(got.Roles[0].Name).To(Equal("User"))
	})

	It("returns nil for unknown ids", func() {
		got, err := repo.GetByID(ctx, 42)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())
	})

	It("checks username existence", func() {
		create("ana", "Administrator")
		exists, err := repo.ExistsByUsername(ctx, "ana")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())

		exists, err = repo.ExistsByUsername(ctx, "zoe")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())
	})

	It("lists only active users ordered by username", func() {
		create("zed", "User")
		create("amy", "User")
		off := create("max", "User")
		Expect(repo.UpdateFields(ctx, off.ID, map[string]interface{}{"is_active": false})).To(Succeed())

		users, err := repo.ListActive(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(usernames(users)).To(Equal([]string{"amy", "zed"}))
	})

	It("filters by role names", func() {
		create("ana", "Administrator")
		create("gil", "Manager")
		create("ula", "User")

		users, err := repo.ListByRoles(ctx, []string{"Manager", "User"}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(usernames(users)).To(Equal([]string{"gil", "ula"}))

		users, err = repo.ListByRoles(ctx, nil, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(3))

		users, err = repo.ListByRoles(ctx, nil, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(BeEmpty())
	})

	It("updates and clears nullable fields", func() {
		u := create("ana", "User")
		Expect(repo.UpdateFields(ctx, u.ID, map[string]interface{}{"allowed_source_address": "10.0.0.7", "theme": "dark"})).To(Succeed())

		got, err := repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*got.AllowedSourceAddress).To(Equal("10.0.0.7"))
		Expect(got.Theme).To(Equal("dark"))

		Expect(repo.UpdateFields(ctx, u.ID, map[string]interface{}{"allowed_source_address": nil})).To(Succeed())
		got, err = repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.AllowedSourceAddress).To(BeNil())
	})

	It("replaces the role on SetRole", func() {
		u := create("ana", "User")
		Expect(repo.SetRole(ctx, u.ID, "Coordinator")).To(Succeed())

		got, err := repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Roles).To(HaveLen(1))
		Expect(got.Roles[0].Name).To(Equal("Coordinator"))
	})

	It("deletes the user with their grants and memberships", func() {
		u := create("ana", "User")
		keep := create("bea", "User")
		Expect(db.Create(&accessDatamodel.UserModule{UserID: u.ID, ModuleID: 7}).Error).To(Succeed())
		Expect(db.Create(&accessDatamodel.UserModule{UserID: keep.ID, ModuleID: 7}).Error).To(Succeed())

		Expect(repo.Delete(ctx, u.ID)).To(Succeed())

		got, err := repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())

		var grants, memberships int64
		Expect(db.Model(&accessDatamodel.UserModule{}).Count(&grants).Error).To(Succeed())
		Expect(grants).To(Equal(int64(1)))
		Expect(db.Table("user_roles").Count(&memberships).Error).To(Succeed())
		Expect(memberships).To(Equal(int64(1)))
	})
})
