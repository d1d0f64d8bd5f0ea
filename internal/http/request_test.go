package http

import (
	"context"
	"io"
	"testing"
)

func TestRequest_Build(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		url            string
		baseURL        string
		headers        map[string]string
		queryParams    map[string]string
		body           []byte
		expectedURL    string
		expectedMethod string
		wantErr        bool
	}{
		{
			name:           "Relative path joined onto base URL",
			method:         "GET",
			url:            "/users",
			baseURL:        "https://api.example.com",
			headers:        map[string]string{"Accept": "application/json"},
			expectedURL:    "https://api.example.com/users",
			expectedMethod: "GET",
		},
		{
			name:           "Trailing slash in base URL",
			method:         "GET",
			url:            "/users",
			baseURL:        "https://api.example.com/",
			expectedURL:    "https://api.example.com/users",
			expectedMethod: "GET",
		},
		{
			name:           "Base URL path prefix is kept",
			method:         "GET",
			url:            "users",
			baseURL:        "https://api.example.com/v1",
			expectedURL:    "https://api.example.com/v1/users",
			expectedMethod: "GET",
		},
		{
			name:           "Absolute URL ignores base URL",
			method:         "GET",
			url:            "http://other.example.com/health",
			baseURL:        "https://api.example.com",
			expectedURL:    "http://other.example.com/health",
			expectedMethod: "GET",
		},
		{
			name:           "Query parameters are encoded",
			method:         "GET",
			url:            "/users",
			baseURL:        "https://api.example.com",
			queryParams:    map[string]string{"page": "1", "limit": "10"},
			expectedURL:    "https://api.example.com/users?limit=10&page=1",
			expectedMethod: "GET",
		},
		{
			name:           "Lower-case method is normalised",
			method:         "post",
			url:            "/users",
			baseURL:        "https://api.example.com",
			body:           []byte(`{"name":"John"}`),
			expectedURL:    "https://api.example.com/users",
			expectedMethod: "POST",
		},
		{
			name:    "Relative URL without base URL",
			method:  "GET",
			url:     "/users",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest(tt.method, tt.url)
			for key, value := range tt.headers {
				req.WithHeader(key, value)
			}
			for key, value := range tt.queryParams {
				req.WithQueryParam(key, value)
			}
			if tt.body != nil {
				req.WithBody(tt.body)
			}

			httpReq, err := req.Build(context.Background(), tt.baseURL)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Error building request: %v", err)
			}

			if httpReq.Method != tt.expectedMethod {
				t.Errorf("Expected method %s, got %s", tt.expectedMethod, httpReq.Method)
			}
			if httpReq.URL.String() != tt.expectedURL {
				t.Errorf("Expected URL %s, got %s", tt.expectedURL, httpReq.URL.String())
			}
			for key, value := range tt.headers {
				if httpReq.Header.Get(key) != value {
					t.Errorf("Expected header %s: %s, got %s", key, value, httpReq.Header.Get(key))
				}
			}
			if tt.body != nil {
				got, _ := io.ReadAll(httpReq.Body)
				if string(got) != string(tt.body) {
					t.Errorf("Expected body %s, got %s", tt.body, got)
				}
			}
		})
	}
}

func TestRequest_BuildDoesNotMutate(t *testing.T) {
	req := NewRequest("GET", "/items").WithQueryParam("q", "a")

	for i := 0; i < 3; i++ {
		httpReq, err := req.Build(context.Background(), "http://localhost")
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if httpReq.URL.RawQuery != "q=a" {
			t.Errorf("Build() #%d query = %s, want q=a", i, httpReq.URL.RawQuery)
		}
	}

	if len(req.Headers) != 0 {
		t.Errorf("Build() added headers to the shared request: %v", req.Headers)
	}
}
