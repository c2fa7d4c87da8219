package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("loadConfig", func() {
	writeConfig := func(body string) string {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600)).To(Succeed())
		return dir
	}

	It("reads the file and fills defaults", func() {
		dir := writeConfig(`
database:
  source: postgres://localhost/portal
  max_open_conns: 10
  max_idle_conns: 2
security:
  session_secret: 0123456789abcdef0123456789abcdef
presence:
  strategy: sessions
  online_window: 2m
`)
		cfg, err := loadConfig(context.Background(), dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Security.BCryptCost).To(Equal(12))
		Expect(cfg.Security.CookieName).To(Equal("portal_session"))
		Expect(cfg.Presence.Strategy).To(Equal("sessions"))
		Expect(cfg.Presence.OnlineWindow).To(Equal(2 * time.Minute))
		Expect(cfg.Portal.DefaultListingPath).To(Equal("/users/"))
	})

	It("rejects a short session secret", func() {
		dir := writeConfig(`
database:
  source: postgres://localhost/portal
  max_open_conns: 10
security:
  session_secret: short
`)
		_, err := loadConfig(context.Background(), dir)
		Expect(err).To(MatchError(ContainSubstring("session secret must be at least 32 characters")))
	})

	It("fails without a config file", func() {
		_, err := loadConfig(context.Background(), GinkgoT().TempDir())
		Expect(err).To(MatchError(ContainSubstring("error reading config")))
	})
})
