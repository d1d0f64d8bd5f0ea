package script

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/loader/internal/config"
	http "github.com/wesleyorama2/loader/internal/http"
	"github.com/wesleyorama2/loader/pkg/jsonpath"
)

// ExpectationError reports a response that did not match its step's expectation.
type ExpectationError struct {
	Step string
	Err  error
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Step, e.Err)
}

func (e *ExpectationError) Unwrap() error {
	return e.Err
}

type jsonCheck struct {
	path   string
	equals *string
	exists *bool
}

type expectation struct {
	status int
	json   []jsonCheck
}

func compileExpectation(e *config.Expectation) (*expectation, error) {
	if e == nil {
		return &expectation{}, nil
	}

	out := &expectation{status: e.Status}
	for i, check := range e.JSON {
		if check.Path == "" {
			return nil, fmt.Errorf("expect.json[%d]: path is required", i)
		}
		c := jsonCheck{path: check.Path, exists: check.Exists}
		if check.Equals != nil {
			want := string(*check.Equals)
			c.equals = &want
		}
		out.json = append(out.json, c)
	}
	return out, nil
}

// verify checks the status code, then the JSON body checks in order.
// Without an explicit status any 4xx or 5xx response fails.
func (e *expectation) verify(resp *http.Response) error {
	if e.status != 0 {
		if resp.StatusCode != e.status {
			return fmt.Errorf("status %d, want %d", resp.StatusCode, e.status)
		}
	} else if resp.IsClientError() || resp.IsServerError() {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if len(e.json) == 0 {
		return nil
	}

	body := resp.GetBody()
	for _, check := range e.json {
		if err := check.verify(body); err != nil {
			return err
		}
	}
	return nil
}

func (c jsonCheck) verify(body []byte) error {
	result, err := jsonpath.Lookup(body, c.path)
	found := err == nil
	if err != nil && !errors.Is(err, jsonpath.ErrNotFound) {
		return fmt.Errorf("%s: %w", c.path, err)
	}

	if c.exists != nil {
		if found != *c.exists {
			if found {
				return fmt.Errorf("%s: present, want absent", c.path)
			}
			return fmt.Errorf("%s: absent, want present", c.path)
		}
		return nil
	}

	if !found {
		return err
	}

	if c.equals == nil {
		return nil
	}
	value := result.String()
	if result.Type == gjson.Null {
		value = "null"
	}
	if value != *c.equals {
		return fmt.Errorf("%s = %q, want %q", c.path, value, *c.equals)
	}
	return nil
}
