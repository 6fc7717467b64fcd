/*-
 * Copyright (c) 2017-2021 F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigiphandler"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/config"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/reconciler"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/test"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Main Tests", func() {
	Describe("Arguments", func() {
		It("verifies cli arguments", func() {
			defer _init()
			os.Args = []string{
				"./bin/bigip-reconcile",
				"--server=10.1.1.245",
				"--server-port=8443",
				"--user=admin",
				"--password=admin",
				"--validate-certs=false",
				"--transport=session",
				"--auth=basic",
				"--log-level=debug",
				"--kind=auth-radius-server",
				"--name=foo",
				"-p", "ip=10.10.10.10",
				"-p", "port=1812",
				"--check",
				"--disable-teems",
			}

			flags.Parse(os.Args)
			Expect(verifyArgs()).To(BeNil())
			Expect(*logLevel).To(Equal("DEBUG"))
			Expect(*bigIPServer).To(Equal("10.1.1.245"))
			Expect(*bigIPServerPort).To(Equal(8443))
			Expect(*validateCerts).To(BeFalse())
			Expect(*transport).To(Equal("session"))
			Expect(*checkMode).To(BeTrue())
			Expect(*disableTeems).To(BeTrue())
			Expect(*resourceParams).To(Equal([]string{"ip=10.10.10.10", "port=1812"}))

			req := flagRequest()
			Expect(req.Kind).To(Equal("auth-radius-server"))
			Expect(req.Name).To(Equal("foo"))
			Expect(req.State).To(Equal("present"))
			Expect(req.Params).To(Equal(map[string]interface{}{"ip": "10.10.10.10", "port": "1812"}))

			p, err := flagProvider()
			Expect(err).To(BeNil())
			Expect(p.Insecure()).To(BeTrue())
		})

		It("uses LOOKUP when resolve-server-name has no value", func() {
			defer _init()
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-node", "--resolve-server-name"})
			Expect(*resolveServerName).To(Equal("LOOKUP"))
		})

		It("collects repeated parameters into a list", func() {
			defer _init()
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-pool", "--name=web",
				"-p", "monitors=http", "-p", "monitors=tcp", "-p", "description=a=b"})
			Expect(verifyArgs()).To(BeNil())
			req := flagRequest()
			Expect(req.Params["monitors"]).To(Equal([]interface{}{"http", "tcp"}))
			Expect(req.Params["description"]).To(Equal("a=b"))
		})

		It("leaves validate-certs unset unless given", func() {
			defer _init()
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-node"})
			p, err := flagProvider()
			Expect(err).To(BeNil())
			Expect(p.ValidateCerts).To(BeNil())
		})

		badArgs := map[string][]string{
			"no desired state":     {},
			"config and kind":      {"--config=/tmp/x.yaml", "--kind=ltm-node"},
			"name without kind":    {"--config=/tmp/x.yaml", "--name=foo"},
			"watch without config": {"--kind=ltm-node", "--watch"},
			"bad parameter":        {"--kind=ltm-node", "-p", "address"},
			"bad log level":        {"--kind=ltm-node", "--log-level=chatty"},
			"bad log format":       {"--kind=ltm-node", "--log-format=xml"},
			"zero poll retries":    {"--kind=ltm-node", "--poll-retries=0"},
		}
		for name, args := range badArgs {
			args := args
			It("rejects "+name, func() {
				defer _init()
				flags.Parse(append([]string{"./bin/bigip-reconcile"}, args...))
				Expect(verifyArgs()).ToNot(BeNil())
			})
		}
	})

	Describe("Credentials", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = ioutil.TempDir("", "bigip-creds")
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			os.RemoveAll(dir)
			os.Unsetenv(config.EnvPassword)
			os.Unsetenv(config.EnvServer)
		})

		It("layers file, flags, credentials directory and environment", func() {
			defer _init()
			Expect(ioutil.WriteFile(filepath.Join(dir, "username"), []byte("operator\n"), 0600)).To(Succeed())
			os.Setenv(config.EnvPassword, "from-env")
			os.Setenv(config.EnvServer, "10.9.9.9")

			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-node",
				"--server=10.1.1.245", "--credentials-directory=" + dir})

			p, err := getCredentials(config.Provider{Server: "10.0.0.1", User: "admin", ServerPort: 8443})
			Expect(err).To(BeNil())
			Expect(p.Server).To(Equal("10.1.1.245"))
			Expect(p.ServerPort).To(Equal(8443))
			Expect(p.User).To(Equal("operator"))
			Expect(p.Password).To(Equal("from-env"))
			Expect(p.Transport).To(Equal(config.TransportREST))
			Expect(p.Auth).To(Equal(bigipclient.AuthToken))
		})

		It("fails without a password", func() {
			defer _init()
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-node", "--server=10.1.1.245", "--user=admin"})
			_, err := getCredentials(config.Provider{})
			Expect(err).ToNot(BeNil())
			Expect(err.Error()).To(ContainSubstring("password"))
		})
	})

	Describe("Transport", func() {
		var server *ghttp.Server

		BeforeEach(func() {
			server = ghttp.NewServer()
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/mgmt/tm/sys/version"),
				ghttp.VerifyBasicAuth("admin", "secret"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{"kind": "tm:sys:version:versionstats"}),
			))
		})

		AfterEach(func() {
			server.Close()
		})

		provider := func(transport string) *config.Provider {
			p := &config.Provider{Server: server.URL(), User: "admin", Password: "secret",
				Transport: transport, Auth: bigipclient.AuthBasic}
			p.Defaults()
			return p
		}

		It("talks REST by default", func() {
			defer _init()
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-node", "--disable-teems"})
			client, stop, err := newClient(context.Background(), provider(config.TransportREST))
			Expect(err).To(BeNil())
			defer stop()
			Expect(client).To(BeAssignableToTypeOf(&bigipclient.RESTClient{}))

			resp, err := client.Get(context.Background(), "/mgmt/tm/sys/version")
			Expect(err).To(BeNil())
			Expect(resp.Body["kind"]).To(Equal("tm:sys:version:versionstats"))
			Expect(server.ReceivedRequests()[0].Header.Get("User-Agent")).To(HavePrefix("bigip-reconcile/"))
		})

		It("talks through a retrying session for the session transport", func() {
			defer _init()
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=ltm-node", "--disable-teems"})
			client, stop, err := newClient(context.Background(), provider(config.TransportSession))
			Expect(err).To(BeNil())
			defer stop()
			Expect(client).To(BeAssignableToTypeOf(&bigiphandler.BigIPHandler{}))

			resp, err := client.Get(context.Background(), "/mgmt/tm/sys/version")
			Expect(err).To(BeNil())
			Expect(resp.Body["kind"]).To(Equal("tm:sys:version:versionstats"))
		})
	})

	Describe("Reconcile loop", func() {
		var device *test.MockBigIP
		var out *bytes.Buffer
		var dir string

		radius := reconciler.Request{
			Kind:   "auth-radius-server",
			Name:   "foo",
			Params: map[string]interface{}{"ip": "10.10.10.10", "port": 1812},
		}

		BeforeEach(func() {
			var err error
			dir, err = ioutil.TempDir("", "bigip-results")
			Expect(err).To(BeNil())
			device = test.NewMockBigIP()
			out = &bytes.Buffer{}
			stdout = out
		})

		AfterEach(func() {
			stdout = os.Stdout
			os.RemoveAll(dir)
		})

		newLoop := func(reqs ...reconciler.Request) *reconcileLoop {
			flags.Parse([]string{"./bin/bigip-reconcile", "--kind=auth-radius-server", "--disable-teems",
				"--poll-interval=1", "--results-file=" + filepath.Join(dir, "results.json")})
			loop, err := newReconcileLoop(device, reqs, config.TransportREST)
			Expect(err).To(BeNil())
			return loop
		}

		It("prints the summary and mirrors it to the results file", func() {
			defer _init()
			loop := newLoop(radius)
			Expect(loop.Once(context.Background())).To(Succeed())
			loop.Stop()

			var printed map[string]interface{}
			Expect(json.Unmarshal(out.Bytes(), &printed)).To(Succeed())
			Expect(printed["changed"]).To(BeTrue())
			results := printed["results"].([]interface{})
			Expect(results).To(HaveLen(1))
			Expect(results[0].(map[string]interface{})["action"]).To(Equal("create"))

			written, err := ioutil.ReadFile(filepath.Join(dir, "results.json"))
			Expect(err).To(BeNil())
			Expect(written).To(MatchJSON(out.Bytes()))
			Expect(loop.health.Healthy()).To(Succeed())
		})

		It("is idempotent across passes", func() {
			defer _init()
			loop := newLoop(radius)
			defer loop.Stop()
			Expect(loop.Once(context.Background())).To(Succeed())
			out.Reset()
			Expect(loop.Once(context.Background())).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"changed":false`))
			Expect(device.Mutations()).To(HaveLen(1))
		})

		It("prints a single failure message", func() {
			defer _init()
			device.Errors["GET /mgmt/tm/auth/radius-server/~Common~foo"] = &bigipclient.DeviceError{
				StatusCode: http.StatusUnauthorized, Message: "Authentication failed"}
			loop := newLoop(radius)
			err := loop.Once(context.Background())
			loop.Stop()
			Expect(err).ToNot(BeNil())

			var printed failure
			Expect(json.Unmarshal(out.Bytes(), &printed)).To(Succeed())
			Expect(printed.Failed).To(BeTrue())
			Expect(printed.Msg).To(ContainSubstring("Authentication failed"))
			Expect(loop.health.Healthy()).ToNot(Succeed())

			written, err := ioutil.ReadFile(filepath.Join(dir, "results.json"))
			Expect(err).To(BeNil())
			Expect(written).To(MatchJSON(out.Bytes()))
		})

		It("sends the summary sections to the results writer", func() {
			defer _init()
			loop := newLoop(radius)
			loop.Stop()
			mw := &test.MockWriter{FailStyle: test.Success}
			loop.writer = mw

			Expect(loop.Once(context.Background())).To(Succeed())
			Expect(mw.WrittenTimes).To(Equal(2))
			Expect(mw.Sections).To(HaveKeyWithValue("changed", true))
			Expect(mw.Sections).To(HaveKey("results"))
		})

		It("keeps going when the results writer fails", func() {
			defer _init()
			loop := newLoop(radius)
			loop.Stop()
			mw := &test.MockWriter{FailStyle: test.AsyncFail}
			loop.writer = mw

			Expect(loop.Once(context.Background())).To(Succeed())
			Expect(mw.WrittenTimes).To(Equal(1))
			Expect(out.String()).To(ContainSubstring(`"changed":true`))
		})

		It("reports validation errors before touching the device", func() {
			defer _init()
			loop := newLoop(reconciler.Request{Kind: "auth-radius-server", Name: "foo",
				Params: map[string]interface{}{"ip": "not-an-ip"}})
			defer loop.Stop()
			Expect(loop.Once(context.Background())).ToNot(Succeed())
			Expect(out.String()).To(ContainSubstring(`"failed":true`))
			Expect(device.Requests).To(BeEmpty())
		})
	})
})
