// Package testkit provides JSON-scenario-driven API testing for the query
// service, plus a migrated in-memory index database for tests.
//
// A scenario file holds an array of requests that run in order against one
// handler, so later steps observe what earlier steps created:
//
//	testdata/
//	  catalogs.json              ← scenarios
//	  create_catalog_res.json    ← expected response body
//
// Example _test.go:
//
//	func TestCatalogAPI(t *testing.T) {
//	    db := testkit.DB(t)
//	    handler := kernel.New(deps(db)).Handler()
//	    testkit.RunFile(t, handler, "testdata/catalogs.json")
//	}
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scenario describes a single API request and the response it must produce.
type Scenario struct {
	Name string `json:"name"`

	// Request
	RequestMethod   string            `json:"requestMethod"`   // GET, POST
	RequestURL      string            `json:"requestUrl"`      // e.g. /catalogs/
	RequestBody     json.RawMessage   `json:"requestBody"`     // inline JSON body
	RequestFileName string            `json:"requestFileName"` // or a body file relative to the scenario
	Headers         map[string]string `json:"headers"`

	// Response assertions
	ExpectedCode     int             `json:"expectedCode"`
	ResponseBody     json.RawMessage `json:"responseBody"`     // inline expected JSON
	ResponseFileName string          `json:"responseFileName"` // or an expected body file
	IgnoreFields     []string        `json:"ignoreFields"`     // keys dropped at any depth before comparing

	dir string // directory of the scenario file, resolved at load time
}

// LoadScenario reads and validates one scenario object from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, data, err := read(path)
	if err != nil {
		return nil, err
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)
	return &s, nil
}

// LoadScenarioArray reads and validates an ordered array of scenarios.
func LoadScenarioArray(path string) ([]*Scenario, error) {
	abs, data, err := read(path)
	if err != nil {
		return nil, err
	}

	var scenarios []*Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("testkit: parse scenario array %q: %w", abs, err)
	}

	dir := filepath.Dir(abs)
	for i, s := range scenarios {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("testkit: invalid scenario %q[%d]: %w", abs, i, err)
		}
		s.dir = dir
	}
	return scenarios, nil
}

func read(path string) (string, []byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}
	return abs, data, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	s.RequestMethod = strings.ToUpper(s.RequestMethod)
	if len(s.RequestBody) > 0 && s.RequestFileName != "" {
		return fmt.Errorf("requestBody and requestFileName are mutually exclusive")
	}
	if len(s.ResponseBody) > 0 && s.ResponseFileName != "" {
		return fmt.Errorf("responseBody and responseFileName are mutually exclusive")
	}
	return nil
}

// RequestPayload returns the request body, inline or from its file.
func (s *Scenario) RequestPayload() ([]byte, error) {
	if len(s.RequestBody) > 0 {
		return s.RequestBody, nil
	}
	return s.readRelative(s.RequestFileName)
}

// ExpectedPayload returns the expected response body, inline or from its
// file. Nil means the body is not asserted.
func (s *Scenario) ExpectedPayload() ([]byte, error) {
	if len(s.ResponseBody) > 0 {
		return s.ResponseBody, nil
	}
	return s.readRelative(s.ResponseFileName)
}

func (s *Scenario) readRelative(name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(s.dir, name)
	}
	return os.ReadFile(name)
}
