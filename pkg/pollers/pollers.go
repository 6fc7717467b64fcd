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
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultRetries  = 180
)

// ErrTimeout is returned when the iteration bound is exhausted before a
// terminal status was seen.
var ErrTimeout = errors.New("timed out waiting for the device to reach a terminal status")

// FailedError is a failure status reported by the device.
type FailedError struct {
	Status string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("device reported status %q", e.Status)
}

// StatusFunc reads the current status string.
type StatusFunc func(ctx context.Context) (string, error)

// Settings bound a status poll.
type Settings struct {
	Name     string
	Interval time.Duration
	Retries  int
	Success  []string
	Failure  []string
	// Tolerate, when set, decides which read errors are retried
	Tolerate func(error) bool
}

// Outcome is the last observed status and the number of reads made.
type Outcome struct {
	Status     string
	Iterations int
}

// PollStatus reads the status at a fixed interval until it is one of
// Success, one of Failure, or Retries reads were made.
func PollStatus(ctx context.Context, read StatusFunc, s Settings) (Outcome, error) {
	if s.Retries <= 0 {
		s.Retries = DefaultRetries
	}
	success := sets.NewString(s.Success...)
	failure := sets.NewString(s.Failure...)
	backoff := wait.Backoff{Duration: s.Interval, Factor: 1, Steps: s.Retries}

	var out Outcome
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func() (bool, error) {
		out.Iterations++
		status, err := read(ctx)
		if err != nil {
			if s.Tolerate != nil && s.Tolerate(err) {
				log.Debugf("[Poller] %s: ignoring error while the device settles: %v", s.Name, err)
				return false, nil
			}
			return false, err
		}
		out.Status = status
		log.Debugf("[Poller] %s: status %q after %d reads", s.Name, status, out.Iterations)
		switch {
		case success.Has(status):
			return true, nil
		case failure.Has(status):
			return false, &FailedError{Status: status}
		}
		return false, nil
	})
	if err == wait.ErrWaitTimeout {
		return out, ErrTimeout
	}
	return out, err
}
