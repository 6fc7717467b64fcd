package bigipclient

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/tokenmanager"
	mockhc "github.com/f5devcentral/mockhttpclient"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func mockClient(method string, status int, body string) *http.Client {
	responseMap := make(mockhc.ResponseConfigMap)
	responseMap[method] = &mockhc.ResponseConfig{
		Responses: []*http.Response{{
			StatusCode: status,
			Header:     http.Header{},
			Body:       ioutil.NopCloser(bytes.NewReader([]byte(body))),
		}},
	}
	client, _ := mockhc.NewMockHTTPClient(responseMap)
	return client
}

var _ = Describe("REST Client Tests", func() {
	var server *ghttp.Server
	var client *RESTClient
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		server = ghttp.NewServer()
		client = NewRESTClient(Config{
			Server:    server.URL(),
			User:      "admin",
			Password:  "secret",
			Auth:      AuthBasic,
			UserAgent: "bigip-reconcile/test",
		})
	})
	AfterEach(func() {
		server.Close()
	})

	Describe("BaseURL", func() {
		It("should default to https and append the port", func() {
			Expect(BaseURL("10.1.1.1", 8443)).To(Equal("https://10.1.1.1:8443"))
			Expect(BaseURL("bigip.example.com", 0)).To(Equal("https://bigip.example.com"))
			Expect(BaseURL("https://bigip.example.com:443", 8443)).To(Equal("https://bigip.example.com:443"))
			Expect(BaseURL("2001:db8::1", 443)).To(Equal("https://[2001:db8::1]:443"))
		})
	})

	Describe("Basic auth", func() {
		It("should decode a successful GET", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/mgmt/tm/ltm/node/~Common~foo"),
					ghttp.VerifyBasicAuth("admin", "secret"),
					ghttp.VerifyHeaderKV("User-Agent", "bigip-reconcile/test"),
					ghttp.RespondWith(http.StatusOK, `{"name":"foo","partition":"Common","address":"10.0.0.1"}`),
				))
			resp, err := client.Get(ctx, "/mgmt/tm/ltm/node/~Common~foo")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			Expect(resp.Body).To(HaveKeyWithValue("address", "10.0.0.1"))
			Expect(resp.Err()).To(BeNil())
		})

		It("should send the JSON body on POST and PATCH", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/mgmt/tm/ltm/node"),
					ghttp.VerifyJSON(`{"name":"foo","address":"10.0.0.1"}`),
					ghttp.RespondWith(http.StatusOK, `{"name":"foo"}`),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("PATCH", "/mgmt/tm/ltm/node/~Common~foo"),
					ghttp.VerifyJSON(`{"description":"web"}`),
					ghttp.RespondWith(http.StatusOK, `{"name":"foo","description":"web"}`),
				),
			)
			_, err := client.Post(ctx, "/mgmt/tm/ltm/node", map[string]interface{}{"name": "foo", "address": "10.0.0.1"})
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Patch(ctx, "/mgmt/tm/ltm/node/~Common~foo", map[string]interface{}{"description": "web"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept an empty body on DELETE", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("DELETE", "/mgmt/tm/ltm/node/~Common~foo"),
					ghttp.RespondWith(http.StatusOK, ""),
				))
			resp, err := client.Delete(ctx, "/mgmt/tm/ltm/node/~Common~foo")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Body).To(BeEmpty())
		})
	})

	Describe("Status handling", func() {
		It("should report 404 as not found without an error", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound,
				`{"code":404,"message":"01020036:3: The requested Node (/Common/foo) was not found.","errorStack":[]}`))
			resp, err := client.Get(ctx, "/mgmt/tm/ltm/node/~Common~foo")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsNotFound()).To(BeTrue())
		})

		It("should report an embedded 404 code as not found", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"code":404,"message":"not found"}`))
			resp, err := client.Get(ctx, "/mgmt/tm/ltm/node/~Common~foo")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsNotFound()).To(BeTrue())
			Expect(resp.IsSuccess()).To(BeFalse())
		})

		It("should raise a DeviceError with the vendor message", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized,
				`{"code":401,"message":"Authentication failed."}`))
			_, err := client.Get(ctx, "/mgmt/tm/ltm/node")
			var devErr *DeviceError
			Expect(errors.As(err, &devErr)).To(BeTrue())
			Expect(devErr.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(devErr.Error()).To(Equal("Authentication failed."))
		})

		It("should fall back to the raw body for non JSON errors", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "<html>Bad Gateway</html>"))
			_, err := client.Get(ctx, "/mgmt/tm/ltm/node")
			var devErr *DeviceError
			Expect(errors.As(err, &devErr)).To(BeTrue())
			Expect(devErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(devErr.Message).To(Equal("<html>Bad Gateway</html>"))
		})

		It("should leave other client errors to the caller", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadRequest,
				`{"code":400,"message":"invalid property value"}`))
			resp, err := client.Patch(ctx, "/mgmt/tm/ltm/node/~Common~foo", map[string]string{"ratio": "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Err()).To(MatchError("invalid property value"))
		})

		It("should raise a DecodeError for a non JSON success body", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "not json"))
			_, err := client.Get(ctx, "/mgmt/tm/ltm/node")
			var decErr *DecodeError
			Expect(errors.As(err, &decErr)).To(BeTrue())
			Expect(decErr.StatusCode).To(Equal(http.StatusOK))
		})

		It("should raise a TransportError when the device is unreachable", func() {
			dead := ghttp.NewServer()
			url := dead.URL()
			dead.Close()
			c := NewRESTClient(Config{Server: url, Auth: AuthBasic})
			_, err := c.Get(ctx, "/mgmt/tm/sys/version")
			var tErr *TransportError
			Expect(errors.As(err, &tErr)).To(BeTrue())
			Expect(tErr.Method).To(Equal("GET"))
		})
	})

	Describe("Canned responses", func() {
		It("should surface 409 conflicts as DeviceError", func() {
			c := NewRESTClient(Config{
				Server:     "bigip.example.com",
				Auth:       AuthBasic,
				HTTPClient: mockClient("POST", http.StatusConflict, `{"code":409,"message":"01020066:3: The requested Node (/Common/foo) already exists."}`),
			})
			_, err := c.Post(ctx, "/mgmt/tm/ltm/node", map[string]string{"name": "foo"})
			Expect(err).To(MatchError(ContainSubstring("already exists")))
		})

		It("should treat an exhausted transport as a TransportError", func() {
			c := NewRESTClient(Config{
				Server:     "bigip.example.com",
				Auth:       AuthBasic,
				HTTPClient: mockClient("GET", http.StatusOK, `{}`),
			})
			_, err := c.Get(ctx, "/mgmt/tm/sys/version")
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Get(ctx, "/mgmt/tm/sys/version")
			var tErr *TransportError
			Expect(errors.As(err, &tErr)).To(BeTrue())
		})

		It("should raise a TransportError for methods without responses", func() {
			c := NewRESTClient(Config{
				Server:     "bigip.example.com",
				Auth:       AuthBasic,
				HTTPClient: mockClient("GET", http.StatusOK, `{}`),
			})
			_, err := c.Delete(ctx, "/mgmt/tm/ltm/node/~Common~foo")
			Expect(err).To(BeAssignableToTypeOf(&TransportError{}))
		})
	})

	Describe("Token auth", func() {
		loginResponse := func(token string) http.HandlerFunc {
			return ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{
				"token": map[string]interface{}{
					"token":            token,
					"expirationMicros": time.Now().Add(20 * time.Minute).UnixMicro(),
				},
			})
		}

		It("should log in once and reuse the token", func() {
			client = NewRESTClient(Config{
				Server:   server.URL(),
				User:     "admin",
				Password: "secret",
				Auth:     AuthToken,
			})
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", tokenmanager.BIGIPLoginURL),
					ghttp.VerifyJSON(`{"username":"admin","password":"secret","loginProviderName":"tmos"}`),
					loginResponse("abc"),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/mgmt/tm/sys/version"),
					ghttp.VerifyHeaderKV("X-F5-Auth-Token", "abc"),
					ghttp.RespondWith(http.StatusOK, `{}`),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/mgmt/tm/sys/version"),
					ghttp.VerifyHeaderKV("X-F5-Auth-Token", "abc"),
					ghttp.RespondWith(http.StatusOK, `{}`),
				),
			)
			_, err := client.Get(ctx, "/mgmt/tm/sys/version")
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Get(ctx, "/mgmt/tm/sys/version")
			Expect(err).NotTo(HaveOccurred())
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})

		It("should use the configured login provider", func() {
			client = NewRESTClient(Config{
				Server:        server.URL(),
				User:          "admin",
				Password:      "secret",
				Auth:          AuthToken,
				LoginProvider: "radius",
			})
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyJSON(`{"username":"admin","password":"secret","loginProviderName":"radius"}`),
					loginResponse("xyz"),
				),
				ghttp.RespondWith(http.StatusOK, `{}`),
			)
			_, err := client.Get(ctx, "/mgmt/tm/sys/version")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should surface a rejected login as DeviceError", func() {
			client = NewRESTClient(Config{
				Server:   server.URL(),
				User:     "admin",
				Password: "wrong",
				Auth:     AuthToken,
			})
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"code":401,"message":"Authentication failed."}`))
			_, err := client.Get(ctx, "/mgmt/tm/sys/version")
			var devErr *DeviceError
			Expect(errors.As(err, &devErr)).To(BeTrue())
			Expect(devErr.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})

var _ = Describe("Response Tests", func() {
	It("should wrap top level arrays", func() {
		resp, err := NewResponse(http.StatusOK, []byte(`[1,2]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body).To(HaveKey("items"))
	})

	It("should raise a DeviceError for an embedded fatal code", func() {
		_, err := NewResponse(http.StatusOK, []byte(`{"code":503,"message":"busy"}`))
		Expect(err).To(BeAssignableToTypeOf(&DeviceError{}))
	})

	It("should use the status text when the body is empty", func() {
		_, err := NewResponse(http.StatusForbidden, nil)
		Expect(err).To(MatchError("403 Forbidden"))
	})

	It("should encode bodies", func() {
		b, err := EncodeBody(map[string]int{"port": 1812})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal(`{"port":1812}`))
		b, _ = EncodeBody([]byte(`{"a":1}`))
		Expect(string(b)).To(Equal(`{"a":1}`))
		b, _ = EncodeBody(nil)
		Expect(b).To(BeNil())
	})
})
