package config

import (
	"fmt"
	"strings"

	"github.com/Blodie/locust-stages/internal/tpo"
)

// ValidationError is one invalid plan field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors collects every invalid field of a plan.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any error was collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var validImplementations = map[string]bool{
	string(tpo.ImplementationStandard):     true,
	string(tpo.ImplementationUber):         true,
	string(tpo.ImplementationDeliveryHero): true,
}

var validMarkets = map[string]bool{
	string(tpo.MarketUS): true,
	string(tpo.MarketCA): true,
}

var validVersions = map[string]bool{
	string(tpo.VersionV1): true,
	string(tpo.VersionV2): true,
}

// Validate checks the whole plan and returns nil or a ValidationErrors
// listing every problem found.
func (p *Plan) Validate() error {
	errs := &ValidationErrors{}

	if !tpo.Environment(p.Environment).Valid() {
		errs.Add("environment", fmt.Sprintf("unknown environment: %s", p.Environment))
	}

	if len(p.Stages) == 0 {
		errs.Add("stages", "at least one stage is required")
	}
	for i, stage := range p.Stages {
		validateStage(fmt.Sprintf("stages[%d]", i), stage, errs)
	}

	if p.RampRate <= 0 {
		errs.Add("rampRate", "rampRate must be greater than 0")
	}

	validateTasks(&p.Tasks, errs)

	if p.ReleaseWait < 0 {
		errs.Add("releaseWait", "releaseWait cannot be negative")
	}
	if p.StatsInterval < 0 {
		errs.Add("statsInterval", "statsInterval cannot be negative")
	}

	validateHTTP(&p.HTTP, errs)

	for env := range p.BaseURLs {
		if !tpo.Environment(env).Valid() {
			errs.Add("baseUrls", fmt.Sprintf("unknown environment: %s", env))
		}
	}

	for i, vendor := range p.Vendors {
		validateVendor(fmt.Sprintf("vendors[%d]", i), &vendor, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateStage(prefix string, stage StagePlan, errs *ValidationErrors) {
	if stage.TargetRate < 0 {
		errs.Add(prefix+".targetRate", "targetRate cannot be negative")
	}
	if stage.Duration <= 0 {
		errs.Add(prefix+".duration", "duration must be greater than 0")
	}
	if stage.Curve < 0 {
		errs.Add(prefix+".curve", "curve cannot be negative")
	}
}

func validateTasks(tasks *TaskWeights, errs *ValidationErrors) {
	weights := map[string]int{
		"tokenGeneration": tasks.TokenGeneration,
		"getMenu":         tasks.GetMenu,
		"order":           tasks.Order,
		"release":         tasks.Release,
	}
	total := 0
	for field, weight := range weights {
		if weight < 0 {
			errs.Add("tasks."+field, "weight cannot be negative")
		}
		total += weight
	}
	if total <= 0 {
		errs.Add("tasks", "at least one task must have a positive weight")
	}
}

func validateHTTP(h *HTTPSettings, errs *ValidationErrors) {
	if h.Timeout < 0 {
		errs.Add("http.timeout", "cannot be negative")
	}
	if h.MaxIdleConns < 0 {
		errs.Add("http.maxIdleConns", "cannot be negative")
	}
	if h.MaxIdleConnsPerHost < 0 {
		errs.Add("http.maxIdleConnsPerHost", "cannot be negative")
	}
	if h.MaxConnsPerHost < 0 {
		errs.Add("http.maxConnsPerHost", "cannot be negative")
	}
}

func validateVendor(prefix string, v *VendorEntry, errs *ValidationErrors) {
	if v.Vendor == "" {
		errs.Add(prefix+".vendor", "vendor is required")
	}
	if !validMarkets[v.Market] {
		errs.Add(prefix+".market", fmt.Sprintf("unknown market: %s", v.Market))
	}
	if v.Weight < 0 {
		errs.Add(prefix+".weight", "weight cannot be negative")
	}
	if !validImplementations[v.Implementation] {
		errs.Add(prefix+".implementation", fmt.Sprintf("unknown implementation: %s", v.Implementation))
	}
	if !validVersions[v.Version] {
		errs.Add(prefix+".version", fmt.Sprintf("unknown version: %s", v.Version))
	}
}
