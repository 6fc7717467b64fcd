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
	"fmt"
	"sync"
	"time"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

// PollFunc produces the data handed to listeners on every interval.
type PollFunc func(ctx context.Context) (interface{}, error)

// PollListener receives the outcome of each poll.
type PollListener func(obj interface{}, err error)

// Poller runs a PollFunc periodically and fans its results out.
type Poller interface {
	Run() error
	Stop() error
	RegisterListener(p PollListener) error
}

type pollData struct {
	obj interface{}
	err error
}

type pollListener struct {
	l chan pollData
	s chan struct{}
}

type intervalPoller struct {
	poll         PollFunc
	pollInterval time.Duration
	stopCh       chan struct{}
	addCh        chan pollListener
	running      bool
	runningLock  *sync.Mutex
	regListeners []PollListener
	cache        interface{}
	lastError    error
}

func NewIntervalPoller(poll PollFunc, pollInterval time.Duration) Poller {
	ip := &intervalPoller{
		poll:         poll,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		addCh:        make(chan pollListener),
		running:      false,
		runningLock:  &sync.Mutex{},
	}

	log.Debugf("[Poller] IntervalPoller object created: %p", ip)
	return ip
}

func (ip *intervalPoller) Run() error {
	ip.runningLock.Lock()
	defer ip.runningLock.Unlock()

	if ip.running {
		return fmt.Errorf("IntervalPoller Run method called while running")
	}
	ip.running = true
	go ip.poller()
	for _, pl := range ip.regListeners {
		log.Debugf("[Poller] IntervalPoller (%p) registering cached listener", ip)
		ip.runListener(pl)
	}

	log.Infof("[Poller] IntervalPoller started: (%p)", ip)
	return nil
}

func (ip *intervalPoller) Stop() error {
	ip.runningLock.Lock()
	defer ip.runningLock.Unlock()

	if !ip.running {
		return fmt.Errorf("IntervalPoller Stop method called while stopped")
	}
	ip.running = false
	ip.stopCh <- struct{}{}

	log.Infof("[Poller] IntervalPoller stopped: %p", ip)
	return nil
}

func (ip *intervalPoller) RegisterListener(p PollListener) error {
	ip.runningLock.Lock()
	defer ip.runningLock.Unlock()

	ip.regListeners = append(ip.regListeners, p)
	if !ip.running {
		log.Debugf("[Poller] IntervalPoller (%p) caching listener, poller is not running", ip)
		return nil
	}

	ip.runListener(p)
	return nil
}

func (ip *intervalPoller) runListener(p PollListener) {
	listener := make(chan pollData)
	stopCh := make(chan struct{})

	ip.addCh <- pollListener{
		l: listener,
		s: stopCh,
	}

	go func() {
		for {
			select {
			case <-stopCh:
				log.Debugf("[Poller] IntervalPoller (%p) listener stopped", ip)
				return
			case pd := <-listener:
				p(pd.obj, pd.err)
			}
		}
	}()
}

func (ip *intervalPoller) stopListeners(listeners []pollListener) {
	for _, pl := range listeners {
		pl.s <- struct{}{}
	}
}

func (ip *intervalPoller) poller() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doPoll := true
	var listeners []pollListener
	var loopTime time.Time
	remainingInterval := ip.pollInterval

	for {
		select {
		case <-ip.stopCh:
			log.Debugf("[Poller] IntervalPoller (%p) stopping poller goroutine", ip)
			ip.stopListeners(listeners)
			return
		default:
		}

		if doPoll {
			doPoll = false
			ip.cache, ip.lastError = ip.poll(ctx)

			for _, listener := range listeners {
				select {
				case listener.l <- pollData{obj: ip.cache, err: ip.lastError}:
				default:
				}
			}
		}

		loopTime = time.Now()
		select {
		case <-ip.stopCh:
			log.Debugf("[Poller] IntervalPoller (%p) stopping poller goroutine", ip)
			ip.stopListeners(listeners)
			return
		case pl := <-ip.addCh:
			pl.l <- pollData{obj: ip.cache, err: ip.lastError}

			remainingInterval = remainingInterval - time.Since(loopTime)
			if remainingInterval < 0 {
				remainingInterval = 0
			}
			listeners = append(listeners, pl)
		case <-time.After(remainingInterval):
			remainingInterval = ip.pollInterval
			doPoll = true
		}
	}
}
