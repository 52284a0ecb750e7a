package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blodie/locust-stages/internal/tpo"
)

func TestParse_MinimalPlanGetsDefaults(t *testing.T) {
	plan, err := Parse([]byte(`name: "smoke"`))
	require.NoError(t, err)

	assert.Equal(t, "smoke", plan.Name)
	assert.Equal(t, string(tpo.EnvironmentPerf), plan.Environment)
	require.Len(t, plan.Stages, 3)
	assert.Equal(t, 40.0, plan.Stages[0].TargetRate)
	assert.Equal(t, 5*time.Minute, time.Duration(plan.Stages[0].Duration))
	assert.Equal(t, 0.0, plan.Stages[1].Curve)
	assert.Equal(t, 40.0, plan.RampRate)
	assert.Equal(t, TaskWeights{Order: 1, Release: 1}, plan.Tasks)
	assert.Equal(t, 180*time.Second, time.Duration(plan.ReleaseWait))
	assert.Equal(t, 10*time.Second, time.Duration(plan.StatsInterval))
}

func TestParse_FullPlan(t *testing.T) {
	plan, err := Parse([]byte(`
name: "alb soak"
environment: alb
stages:
  - targetRate: 20
    duration: 10m
    curve: 1.5
rampRate: 10
tasks:
  getMenu: 2
  order: 3
  release: 3
releaseWait: 90s
useGlobalTokens: true
logResponses: true
statsInterval: 5s
http:
  timeout: 15s
  maxIdleConnsPerHost: 50
baseUrls:
  alb: "http://localhost:8080"
vendors:
  - vendor: doordash
    market: us
    weight: 2
    clientId: cid
    instanceId: iid
    implementation: standard
    version: v1
`))
	require.NoError(t, err)

	assert.Equal(t, "alb", plan.Environment)
	require.Len(t, plan.Stages, 1)
	assert.Equal(t, 10*time.Minute, time.Duration(plan.Stages[0].Duration))
	assert.Equal(t, 1.5, plan.Stages[0].Curve)
	assert.Equal(t, 10.0, plan.RampRate)
	assert.Equal(t, 2, plan.Tasks.GetMenu)
	assert.True(t, plan.UseGlobalTokens)
	assert.True(t, plan.LogResponses)
	assert.Equal(t, 15*time.Second, time.Duration(plan.HTTP.Timeout))
	assert.Equal(t, "http://localhost:8080", plan.BaseURLs["alb"])
	require.Len(t, plan.Vendors, 1)
	assert.Equal(t, "doordash", plan.Vendors[0].Vendor)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("stages: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: nlb\n"), 0o644))

	plan, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nlb", plan.Environment)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestShapeStages(t *testing.T) {
	plan := DefaultPlan()
	stages, err := plan.ShapeStages()
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, 40.0, stages[0].TargetRate)
	assert.Equal(t, 4.0, stages[2].Curve)
}

func TestCatalog_PlanVendorsReplaceBuiltin(t *testing.T) {
	plan := DefaultPlan()
	assert.NotEmpty(t, plan.Catalog().Entries())

	plan.Vendors = []VendorEntry{{
		Vendor: "doordash", Market: "us", Weight: 1,
		ClientID: "cid", InstanceID: "iid",
		Implementation: "standard", Version: "v1",
	}}
	entries := plan.Catalog().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, tpo.VendorDoorDash, entries[0].Vendor)
}

func TestCatalog_PlanFileRoundTrip(t *testing.T) {
	plan, err := Parse([]byte(`
environment: alb
vendors:
  - vendor: ubereats
    market: us
    weight: 3
    clientId: uber-cid
    instanceId: 7c8d21b4-3e5f-49a0-b6d2-91e4f7a30c58
    implementation: uber
    usesStoreUuid: true
    version: v2
  - vendor: doordash
    market: us
    weight: 0
    clientId: dd-cid
    instanceId: 2f1e6a0c-9d41-4a7b-8a15-0d6c3b9e7f21
    implementation: standard
    version: v1
    basicCredential: "Basic ZGQ="
`))
	require.NoError(t, err)

	entries := plan.Catalog().Entries()
	require.Len(t, entries, 2)

	uber := entries[0]
	assert.Equal(t, tpo.VendorUberEats, uber.Vendor)
	assert.Equal(t, 3, uber.Weight)
	assert.True(t, uber.UsesStoreUUID)
	assert.Equal(t, tpo.ImplementationUber, uber.Implementation)
	assert.Equal(t, tpo.VersionV2, uber.Version)

	dd := entries[1]
	assert.Equal(t, 0, dd.Weight)
	assert.False(t, dd.UsesStoreUUID)
	assert.Equal(t, "Basic ZGQ=", dd.BasicCredential)

	// The zero-weight entry never wins the weighted pick.
	picked, err := plan.Catalog().Select([]tpo.Vendor{tpo.VendorUberEats, tpo.VendorDoorDash})
	require.NoError(t, err)
	assert.Equal(t, tpo.VendorUberEats, picked.Vendor)
}

func TestEnvironmentBaseURLs(t *testing.T) {
	plan := DefaultPlan()
	assert.Nil(t, plan.EnvironmentBaseURLs())

	plan.BaseURLs = map[string]string{"perf": "http://localhost:9999"}
	urls := plan.EnvironmentBaseURLs()
	assert.Equal(t, "http://localhost:9999", urls[tpo.EnvironmentPerf])
}
