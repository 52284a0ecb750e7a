// Package config parses and validates load-test plan files.
package config

import (
	"time"

	"github.com/Blodie/locust-stages/internal/shape"
	"github.com/Blodie/locust-stages/internal/tpo"
)

// Plan is the root of a plan file.
//
// Example YAML:
//
//	name: "order perf run"
//	environment: perf
//	stages:
//	  - targetRate: 40
//	    duration: 5m
//	    curve: 2
//	  - targetRate: 40
//	    duration: 2m
//	    curve: 0
//	  - targetRate: 0
//	    duration: 5m
//	    curve: 4
//	tasks:
//	  order: 1
//	  release: 1
type Plan struct {
	// Name of the run (for reporting).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Environment the requests target: perf, alb or nlb.
	Environment string `json:"environment" yaml:"environment"`

	// Stages of the throughput curve, in order.
	Stages []StagePlan `json:"stages" yaml:"stages"`

	// RampRate caps how fast the user count moves toward the scheduler's
	// target, in users per second.
	RampRate float64 `json:"rampRate,omitempty" yaml:"rampRate,omitempty"`

	// Tasks assigns weights to the four task types. Zero disables a task.
	Tasks TaskWeights `json:"tasks,omitempty" yaml:"tasks,omitempty"`

	// ReleaseWait is the minimum age of an order before its release call.
	ReleaseWait Duration `json:"releaseWait,omitempty" yaml:"releaseWait,omitempty"`

	// UseGlobalTokens shares refreshed bearer tokens per vendor instead of
	// per request.
	UseGlobalTokens bool `json:"useGlobalTokens,omitempty" yaml:"useGlobalTokens,omitempty"`

	// LogResponses logs every response body to the console.
	LogResponses bool `json:"logResponses,omitempty" yaml:"logResponses,omitempty"`

	// StatsInterval is how often progress stats are reprinted.
	StatsInterval Duration `json:"statsInterval,omitempty" yaml:"statsInterval,omitempty"`

	// HTTP tunes the shared HTTP client.
	HTTP HTTPSettings `json:"http,omitempty" yaml:"http,omitempty"`

	// BaseURLs overrides the per-environment base URLs.
	BaseURLs map[string]string `json:"baseUrls,omitempty" yaml:"baseUrls,omitempty"`

	// Vendors replaces the built-in vendor catalog when non-empty.
	Vendors []VendorEntry `json:"vendors,omitempty" yaml:"vendors,omitempty"`
}

// StagePlan is one stage of the throughput curve.
type StagePlan struct {
	// TargetRate is the requests/second to reach by the end of the stage.
	TargetRate float64 `json:"targetRate" yaml:"targetRate"`

	// Duration of the stage.
	Duration Duration `json:"duration" yaml:"duration"`

	// Curve is the exponent shaping the ramp; 0 is a step.
	Curve float64 `json:"curve" yaml:"curve"`
}

// TaskWeights assigns integer weights to the task table.
type TaskWeights struct {
	TokenGeneration int `json:"tokenGeneration" yaml:"tokenGeneration"`
	GetMenu         int `json:"getMenu" yaml:"getMenu"`
	Order           int `json:"order" yaml:"order"`
	Release         int `json:"release" yaml:"release"`
}

// HTTPSettings tunes the shared HTTP client.
type HTTPSettings struct {
	Timeout             Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxIdleConns        int      `json:"maxIdleConns,omitempty" yaml:"maxIdleConns,omitempty"`
	MaxIdleConnsPerHost int      `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
	MaxConnsPerHost     int      `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty"`
	IdleConnTimeout     Duration `json:"idleConnTimeout,omitempty" yaml:"idleConnTimeout,omitempty"`
	DisableKeepAlives   bool     `json:"disableKeepAlives,omitempty" yaml:"disableKeepAlives,omitempty"`
	DisableCompression  bool     `json:"disableCompression,omitempty" yaml:"disableCompression,omitempty"`
}

// VendorEntry is one catalog entry in a plan file.
type VendorEntry struct {
	Vendor          string `json:"vendor" yaml:"vendor"`
	Market          string `json:"market" yaml:"market"`
	Weight          int    `json:"weight" yaml:"weight"`
	ClientID        string `json:"clientId" yaml:"clientId"`
	InstanceID      string `json:"instanceId" yaml:"instanceId"`
	Implementation  string `json:"implementation" yaml:"implementation"`
	UsesStoreUUID   bool   `json:"usesStoreUuid,omitempty" yaml:"usesStoreUuid,omitempty"`
	Version         string `json:"version" yaml:"version"`
	BasicCredential string `json:"basicCredential,omitempty" yaml:"basicCredential,omitempty"`
}

// DefaultPlan mirrors the built-in run: the 40 rps up/hold/down curve over
// the order and release tasks on the perf environment.
func DefaultPlan() *Plan {
	return &Plan{
		Name:        "default",
		Environment: string(tpo.EnvironmentPerf),
		Stages: []StagePlan{
			{TargetRate: 40, Duration: Duration(5 * time.Minute), Curve: 2},
			{TargetRate: 40, Duration: Duration(2 * time.Minute), Curve: 0},
			{TargetRate: 0, Duration: Duration(5 * time.Minute), Curve: 4},
		},
		RampRate:      40,
		Tasks:         TaskWeights{Order: 1, Release: 1},
		ReleaseWait:   Duration(180 * time.Second),
		StatsInterval: Duration(10 * time.Second),
	}
}

// applyDefaults fills unset fields with the default plan's values.
func (p *Plan) applyDefaults() {
	def := DefaultPlan()
	if p.Environment == "" {
		p.Environment = def.Environment
	}
	if len(p.Stages) == 0 {
		p.Stages = def.Stages
	}
	if p.RampRate == 0 {
		p.RampRate = def.RampRate
	}
	if p.Tasks == (TaskWeights{}) {
		p.Tasks = def.Tasks
	}
	if p.ReleaseWait == 0 {
		p.ReleaseWait = def.ReleaseWait
	}
	if p.StatsInterval == 0 {
		p.StatsInterval = def.StatsInterval
	}
}

// ShapeStages converts the plan's stages into validated scheduler stages.
func (p *Plan) ShapeStages() ([]shape.Stage, error) {
	stages := make([]shape.Stage, 0, len(p.Stages))
	for _, sp := range p.Stages {
		stage, err := shape.NewStage(sp.TargetRate, time.Duration(sp.Duration), sp.Curve)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// Catalog builds the vendor catalog: the plan's vendors when present,
// otherwise the built-in one.
func (p *Plan) Catalog() *tpo.Catalog {
	if len(p.Vendors) == 0 {
		return tpo.DefaultCatalog()
	}
	entries := make([]*tpo.VendorConfig, 0, len(p.Vendors))
	for _, v := range p.Vendors {
		entries = append(entries, &tpo.VendorConfig{
			Vendor:          tpo.Vendor(v.Vendor),
			Market:          tpo.Market(v.Market),
			Weight:          v.Weight,
			ClientID:        v.ClientID,
			InstanceID:      v.InstanceID,
			Implementation:  tpo.Implementation(v.Implementation),
			UsesStoreUUID:   v.UsesStoreUUID,
			Version:         tpo.Version(v.Version),
			BasicCredential: v.BasicCredential,
		})
	}
	return tpo.NewCatalog(entries)
}

// EnvironmentBaseURLs converts the plan's base-URL overrides to typed keys.
func (p *Plan) EnvironmentBaseURLs() map[tpo.Environment]string {
	if len(p.BaseURLs) == 0 {
		return nil
	}
	out := make(map[tpo.Environment]string, len(p.BaseURLs))
	for env, base := range p.BaseURLs {
		out[tpo.Environment(env)] = base
	}
	return out
}

// Duration is a time.Duration that unmarshals from YAML/JSON strings like
// "30s" or "5m".
type Duration time.Duration

// GetDuration returns the duration or defaultValue when unset.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
