package teem

import (
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/f5devcentral/go-bigip/f5teem"
	"github.com/google/uuid"
)

// TeemsData structure contains supporting data to be posted to TEEM's server
type TeemsData struct {
	sync.Mutex
	Version         string
	Transport       string
	Mode            string
	DateOfDeploy    string
	PlatformInfo    string
	ResourceCounts  map[string]int // reconciled resources per kind
	ChangedCount    int
	AccessEnabled   bool // Will be set to false if network rules don't permit
	RegistrationKey string
}

const (
	TOTAL      = "total"
	staging    = "staging"
	production = "production"
)

// NewTeemsData returns telemetry with posting enabled.
func NewTeemsData(version, transport, mode, deployed string) *TeemsData {
	return &TeemsData{
		Version:        version,
		Transport:      transport,
		Mode:           mode,
		DateOfDeploy:   deployed,
		ResourceCounts: make(map[string]int),
		AccessEnabled:  true,
	}
}

// Count records one reconciled resource of kind.
func (td *TeemsData) Count(kind string, changed bool) {
	td.Lock()
	defer td.Unlock()
	if td.ResourceCounts == nil {
		td.ResourceCounts = make(map[string]int)
	}
	td.ResourceCounts[kind]++
	if changed {
		td.ChangedCount++
	}
}

// Reset clears the counters between passes.
func (td *TeemsData) Reset() {
	td.Lock()
	defer td.Unlock()
	td.ResourceCounts = make(map[string]int)
	td.ChangedCount = 0
}

// data builds the telemetry document. Caller holds the lock.
func (td *TeemsData) data() map[string]interface{} {
	data := map[string]interface{}{
		"platformInfo":    td.PlatformInfo,
		"transport":       td.Transport,
		"mode":            td.Mode,
		"dateOfDeploy":    td.DateOfDeploy,
		"registrationKey": td.RegistrationKey,
		"changedCount":    td.ChangedCount,
	}
	sum := 0
	for kind, count := range td.ResourceCounts {
		if kind == TOTAL {
			continue
		}
		data[kind+"Count"] = count
		sum += count
	}
	data[TOTAL+"Count"] = sum
	return data
}

// PostTeemsData posts data to TEEM server and returns a boolean response useful to decide if network rules permit to access server
func (td *TeemsData) PostTeemsData() bool {
	if !td.AccessEnabled {
		return false
	}
	apiEnv := os.Getenv("TEEM_API_ENVIRONMENT")
	var apiKey string
	if apiEnv != "" {
		if apiEnv == staging {
			apiKey = os.Getenv("TEEM_API_KEY")
			if len(apiKey) == 0 {
				log.Error("API key missing to post to staging teem server")
				return false
			}
		} else if apiEnv != production {
			log.Error("Invalid TEEM_API_ENVIRONMENT. Unset to use production server")
			return false
		}
	}
	td.Lock()
	assetInfo := f5teem.AssetInfo{
		Name:    "bigip-reconcile",
		Version: fmt.Sprintf("bigip-reconcile/v%v", td.Version),
		Id:      uuid.New().String(),
	}
	teemDevice := f5teem.AnonymousClient(assetInfo, apiKey)
	data := td.data()
	td.Unlock()
	err := teemDevice.Report(data, "bigip-reconcile Telemetry Data", "1")
	if err != nil && !strings.Contains(err.Error(), "request-limit") {
		// teems answers 429 with request-limit once 30 requests per hour
		// are hit and accepts reports again after the waiting period
		log.Debugf("Error reporting telemetry data :%v", err)
		td.AccessEnabled = false
	}
	return td.AccessEnabled
}
