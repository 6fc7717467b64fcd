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

package pollers

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// sequence returns the statuses in order, repeating the last one.
func sequence(calls *int, statuses ...string) StatusFunc {
	return func(ctx context.Context) (string, error) {
		i := *calls
		*calls++
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return statuses[i], nil
	}
}

var _ = Describe("Status polling", func() {
	var settings Settings
	ctx := context.Background()

	BeforeEach(func() {
		settings = Settings{
			Name:     "config-sync",
			Interval: time.Millisecond,
			Retries:  5,
			Success:  []string{"In Sync"},
			Failure:  []string{"FAILURE", "FAILED", "Disconnected"},
		}
	})

	It("should succeed on the third read", func() {
		calls := 0
		out, err := PollStatus(ctx, sequence(&calls, "Changes Pending", "Awaiting Initial Sync", "In Sync"), settings)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
		Expect(out).To(Equal(Outcome{Status: "In Sync", Iterations: 3}))
	})

	It("should fail immediately on a failure status", func() {
		calls := 0
		out, err := PollStatus(ctx, sequence(&calls, "FAILURE", "In Sync"), settings)
		var failed *FailedError
		Expect(errors.As(err, &failed)).To(BeTrue())
		Expect(failed.Status).To(Equal("FAILURE"))
		Expect(calls).To(Equal(1))
		Expect(out.Iterations).To(Equal(1))
	})

	It("should time out after the iteration bound", func() {
		calls := 0
		out, err := PollStatus(ctx, sequence(&calls, "Changes Pending"), settings)
		Expect(err).To(Equal(ErrTimeout))
		Expect(calls).To(Equal(5))
		Expect(out.Status).To(Equal("Changes Pending"))
	})

	It("should stop on read errors unless tolerated", func() {
		boom := errors.New("connection refused")
		calls := 0
		read := func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", boom
			}
			return "In Sync", nil
		}
		_, err := PollStatus(ctx, read, settings)
		Expect(err).To(Equal(boom))
		Expect(calls).To(Equal(1))

		calls = 0
		settings.Tolerate = func(err error) bool { return err == boom }
		out, err := PollStatus(ctx, read, settings)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Iterations).To(Equal(3))
	})

	It("should honour cancellation", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		_, err := PollStatus(cctx, sequence(&calls, "Changes Pending"), settings)
		Expect(err).To(Equal(context.Canceled))
		Expect(calls).To(Equal(0))
	})

	It("should not wait out the interval once cancelled", func() {
		settings.Interval = time.Hour
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		read := func(ctx context.Context) (string, error) {
			calls++
			go cancel()
			return "Changes Pending", nil
		}

		start := time.Now()
		out, err := PollStatus(cctx, read, settings)
		Expect(err).To(Equal(context.Canceled))
		Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
		Expect(calls).To(Equal(1))
		Expect(out.Status).To(Equal("Changes Pending"))
	})
})

var _ = Describe("Interval Poller", func() {
	It("starts and stops", func() {
		ip := NewIntervalPoller(func(ctx context.Context) (interface{}, error) {
			return "pass", nil
		}, time.Millisecond)
		Expect(ip).ToNot(BeNil())

		Expect(ip.Run()).To(Succeed())
		Expect(ip.Run()).ToNot(Succeed())

		called := make(chan interface{}, 10)
		err := ip.RegisterListener(func(obj interface{}, err error) {
			select {
			case called <- obj:
			default:
			}
		})
		Expect(err).To(BeNil())
		Eventually(called).Should(Receive(Equal("pass")))

		Expect(ip.Stop()).To(Succeed())
		Expect(ip.Stop()).ToNot(Succeed())
	})

	It("hands errors to cached listeners", func() {
		boom := errors.New("pass failed")
		ip := NewIntervalPoller(func(ctx context.Context) (interface{}, error) {
			return nil, boom
		}, time.Millisecond)

		errs := make(chan error, 10)
		Expect(ip.RegisterListener(func(obj interface{}, err error) {
			select {
			case errs <- err:
			default:
			}
		})).To(Succeed())
		Expect(ip.Run()).To(Succeed())
		Eventually(errs).Should(Receive(Equal(boom)))
		Expect(ip.Stop()).To(Succeed())
	})
})
