package tokenmanager

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/httpclient"
	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func loginBody(token string, expiry time.Time) map[string]interface{} {
	return map[string]interface{}{
		"username": "admin",
		"token": map[string]interface{}{
			"token":            token,
			"expirationMicros": expiry.UnixMicro(),
			"timeout":          1200,
		},
	}
}

var _ = Describe("Token Manager Tests", func() {
	var tokenManager *TokenManager
	var server *ghttp.Server
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		server = ghttp.NewServer()
		tokenManager = NewTokenManager(server.URL(), Credentials{
			Username: "admin",
			Password: "admin",
		}, http.DefaultClient)
		tokenManager.RetryInterval = 10 * time.Millisecond
		tokenManager.MaxRetries = 2
	})
	AfterEach(func() {
		server.Close()
	})

	Describe("SyncTokenWithoutRetry", func() {
		It("should send the tmos login provider", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", BIGIPLoginURL),
					ghttp.VerifyJSON(`{"username":"admin","password":"admin","loginProviderName":"tmos"}`),
					ghttp.RespondWithJSONEncoded(http.StatusOK, loginBody("test.token", time.Now().Add(20*time.Minute))),
				))
			retry, err := tokenManager.SyncTokenWithoutRetry(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(retry).To(BeFalse())
			Expect(tokenManager.Token).To(Equal("test.token"))
		})

		It("should not retry on unauthorized", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", BIGIPLoginURL),
					ghttp.RespondWith(http.StatusUnauthorized, `{"code":401,"message":"Authentication failed."}`),
				))
			retry, err := tokenManager.SyncTokenWithoutRetry(ctx)
			Expect(retry).To(BeFalse())
			var loginErr *LoginError
			Expect(errors.As(err, &loginErr)).To(BeTrue())
			Expect(loginErr.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should ask for a retry on service unavailable", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, ""))
			retry, err := tokenManager.SyncTokenWithoutRetry(ctx)
			Expect(err).To(HaveOccurred())
			Expect(retry).To(BeTrue())
		})

		It("should reject a login response without a token", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"username": "admin"}))
			_, err := tokenManager.SyncTokenWithoutRetry(ctx)
			Expect(err).To(MatchError(ContainSubstring("no token")))
		})
	})

	Describe("SyncToken", func() {
		It("should give up after the configured number of retries", func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusServiceUnavailable, ""),
				ghttp.RespondWith(http.StatusServiceUnavailable, ""),
				ghttp.RespondWith(http.StatusServiceUnavailable, ""),
			)
			err := tokenManager.SyncToken(ctx)
			Expect(err).To(HaveOccurred())
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})

		It("should succeed once the device recovers", func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusServiceUnavailable, ""),
				ghttp.RespondWithJSONEncoded(http.StatusOK, loginBody("late.token", time.Now().Add(20*time.Minute))),
			)
			Expect(tokenManager.SyncToken(ctx)).To(Succeed())
			Expect(tokenManager.Token).To(Equal("late.token"))
		})

		It("should fail fast on bad credentials", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, ""))
			Expect(tokenManager.SyncToken(ctx)).NotTo(Succeed())
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	Describe("GetToken", func() {
		It("should log in once and reuse the token", func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, loginBody("test.token", time.Now().Add(20*time.Minute))),
			)
			token, err := tokenManager.GetToken(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("test.token"))

			token, err = tokenManager.GetToken(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("test.token"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})

		It("should refresh an expired token", func() {
			tokenManager.SetToken("old.token", time.Now().Add(-time.Minute).UnixMicro())
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("PATCH", BIGIPTokenURL+"old.token"),
					ghttp.VerifyHeaderKV("X-F5-Auth-Token", "old.token"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{
						"token":            "old.token",
						"expirationMicros": time.Now().Add(20 * time.Minute).UnixMicro(),
					}),
				))
			token, err := tokenManager.GetToken(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("old.token"))
		})

		It("should return an empty token when login fails", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, ""))
			token, err := tokenManager.GetToken(ctx)
			Expect(err).To(HaveOccurred())
			Expect(token).To(BeEmpty())
		})
	})

	Describe("LoginError", func() {
		It("should describe connection failures", func() {
			err := &LoginError{Err: errors.New("connection refused")}
			Expect(err.Error()).To(ContainSubstring("unable to establish connection"))
		})
	})
})

var _ = Describe("Shared Token Manager Tests", func() {
	var stm *SharedTokenManager
	var client *http.Client

	BeforeEach(func() {
		client = &http.Client{}
		gock.InterceptClient(client)
		stm = NewSharedTokenManager(httpclient.NewFactory(), 0)
	})
	AfterEach(func() {
		stm.StopAll()
		gock.RestoreClient(client)
		gock.Off()
	})

	It("should reuse one login per host and user", func() {
		gock.New("https://bigip.example.com").
			Post(BIGIPLoginURL).
			Times(1).
			Reply(http.StatusOK).
			JSON(loginBody("shared.token", time.Now().Add(20*time.Minute)))

		creds := Credentials{Username: "admin", Password: "secret"}
		tm1, err := stm.GetOrCreateTokenManager(context.Background(), "bigip.example.com", creds, client)
		Expect(err).NotTo(HaveOccurred())
		tm2, err := stm.GetOrCreateTokenManager(context.Background(), "bigip.example.com", creds, client)
		Expect(err).NotTo(HaveOccurred())
		Expect(tm2).To(BeIdenticalTo(tm1))
		Expect(gock.IsDone()).To(BeTrue())

		token, err := tm1.GetToken(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("shared.token"))
		Expect(stm.GetActiveTokenManagers()).To(ConsistOf("admin@bigip.example.com"))
		Expect(stm.GetTokenManager("bigip.example.com", "admin")).NotTo(BeNil())
		Expect(stm.GetTokenManager("bigip.example.com", "other")).To(BeNil())
	})

	It("should not cache a manager whose login failed", func() {
		gock.New("https://bigip.example.com").
			Post(BIGIPLoginURL).
			Reply(http.StatusUnauthorized)

		_, err := stm.GetOrCreateTokenManager(context.Background(), "bigip.example.com",
			Credentials{Username: "admin", Password: "wrong"}, client)
		Expect(err).To(HaveOccurred())
		Expect(stm.GetActiveTokenManagers()).To(BeEmpty())
	})

	It("should keep an existing scheme", func() {
		Expect(FormatBigIPURL("http://10.0.0.1:8443")).To(Equal("http://10.0.0.1:8443"))
		Expect(FormatBigIPURL("10.0.0.1")).To(Equal("https://10.0.0.1"))
	})
})
