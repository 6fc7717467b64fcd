package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const desiredState = `
provider:
  server: bigip.example.com
  server_port: 8443
  user: admin
  validate_certs: no
  transport: session
resources:
  - kind: auth-radius-server
    name: foo
    state: present
    params:
      ip: 10.10.10.10
      port: 1812
  - kind: net-vlan
    name: internal
    partition: Common
    params:
      tag: 100
      interfaces:
        - name: "1.1"
          tagged: true
`

var _ = Describe("Config", func() {
	Context("desired-state document", func() {
		It("parses provider and resources", func() {
			ds, err := Parse([]byte(desiredState))
			Expect(err).NotTo(HaveOccurred())
			Expect(ds.Provider.Server).To(Equal("bigip.example.com"))
			Expect(ds.Provider.ServerPort).To(Equal(8443))
			Expect(ds.Provider.Insecure()).To(BeTrue())
			Expect(ds.Provider.Transport).To(Equal(TransportSession))

			Expect(ds.Resources).To(HaveLen(2))
			Expect(ds.Resources[0].Kind).To(Equal("auth-radius-server"))
			Expect(ds.Resources[0].State).To(Equal("present"))
			Expect(ds.Resources[0].Params).To(HaveKeyWithValue("ip", "10.10.10.10"))
			Expect(ds.Resources[0].Params).To(HaveKeyWithValue("port", 1812))

			ifaces, ok := ds.Resources[1].Params["interfaces"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(ifaces[0]).To(Equal(map[string]interface{}{"name": "1.1", "tagged": true}))
		})

		It("rejects unknown keys", func() {
			_, err := Parse([]byte("resource:\n  - kind: ltm-node\n"))
			Expect(err).To(HaveOccurred())
		})

		It("requires a kind", func() {
			_, err := Parse([]byte("resources:\n  - name: foo\n"))
			Expect(params.IsValidationError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("resources[0].kind"))
		})

		It("loads from disk", func() {
			f, err := ioutil.TempFile("", "desired-*.yaml")
			Expect(err).NotTo(HaveOccurred())
			defer os.Remove(f.Name())
			_, err = f.WriteString(desiredState)
			Expect(err).NotTo(HaveOccurred())
			f.Close()

			ds, err := Load(f.Name())
			Expect(err).NotTo(HaveOccurred())
			Expect(ds.Resources).To(HaveLen(2))

			_, err = Load(f.Name() + ".missing")
			Expect(err).To(MatchError(ContainSubstring("unable to read desired-state file")))
		})
	})

	Context("provider", func() {
		AfterEach(func() {
			for _, k := range []string{EnvServer, EnvServerPort, EnvUser, EnvPassword, EnvValidateCerts} {
				os.Unsetenv(k)
			}
		})

		It("takes unset values from the environment", func() {
			os.Setenv(EnvServer, "10.1.1.245")
			os.Setenv(EnvServerPort, "8443")
			os.Setenv(EnvUser, "admin")
			os.Setenv(EnvPassword, "secret")
			os.Setenv(EnvValidateCerts, "false")

			p := Provider{User: "operator"}
			Expect(p.ApplyEnv()).To(Succeed())
			Expect(p.Server).To(Equal("10.1.1.245"))
			Expect(p.ServerPort).To(Equal(8443))
			Expect(p.User).To(Equal("operator"))
			Expect(p.Password).To(Equal("secret"))
			Expect(p.Insecure()).To(BeTrue())
		})

		It("rejects a bad environment port", func() {
			os.Setenv(EnvServerPort, "notaport")
			p := Provider{}
			Expect(params.IsValidationError(p.ApplyEnv())).To(BeTrue())
		})

		It("merges overrides and fills defaults", func() {
			f := false
			p := Provider{Server: "a", User: "u", Password: "p"}
			p.Merge(Provider{Server: "b", ValidateCerts: &f})
			p.Defaults()
			Expect(p.Server).To(Equal("b"))
			Expect(p.User).To(Equal("u"))
			Expect(p.ServerPort).To(Equal(DefaultServerPort))
			Expect(p.Transport).To(Equal(TransportREST))
			Expect(p.Auth).To(Equal("token"))
			Expect(p.AuthProvider).To(Equal("tmos"))
			Expect(p.Insecure()).To(BeTrue())
			Expect(p.Validate()).To(Succeed())
			Expect(p.Address()).To(Equal("b:443"))
		})

		It("reports every missing setting", func() {
			p := Provider{}
			p.Defaults()
			err := p.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("server"))
			Expect(err.Error()).To(ContainSubstring("username"))
			Expect(err.Error()).To(ContainSubstring("password"))
			Expect(params.IsValidationError(err)).To(BeTrue())
		})

		It("rejects an unknown transport", func() {
			p := Provider{Server: "a", User: "u", Password: "p", Transport: "soap"}
			p.Defaults()
			Expect(p.Validate()).To(MatchError(ContainSubstring(`"soap"`)))
		})
	})

	Context("credentials directory", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = ioutil.TempDir("", "creds")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(dir)
		})

		write := func(name, content string) {
			Expect(ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0600)).To(Succeed())
		}

		It("reads every file", func() {
			write("username", "admin\n")
			write("password", "s3cret\n")
			write("url", "https://10.1.1.4:8443/")

			p := Provider{}
			Expect(p.ReadCredentialsDir(dir)).To(Succeed())
			Expect(p.User).To(Equal("admin"))
			Expect(p.Password).To(Equal("s3cret"))
			Expect(p.Server).To(Equal("10.1.1.4"))
			Expect(p.ServerPort).To(Equal(8443))
		})

		It("falls back to existing values", func() {
			write("password", "s3cret")
			p := Provider{User: "admin", Server: "10.1.1.4"}
			Expect(p.ReadCredentialsDir(dir)).To(Succeed())
			Expect(p.User).To(Equal("admin"))
			Expect(p.Password).To(Equal("s3cret"))
			Expect(p.Server).To(Equal("10.1.1.4"))
		})

		It("fails when neither source has a value", func() {
			p := Provider{}
			Expect(p.ReadCredentialsDir(dir)).To(MatchError("BIG-IP username not specified"))
		})

		It("rejects a url with a path", func() {
			p := Provider{}
			Expect(p.SetServerURL("https://10.1.1.4/mgmt")).To(MatchError(ContainSubstring("remove /mgmt from path")))
		})
	})
})
