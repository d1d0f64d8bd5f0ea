package http

import "time"

// TimingInfo breaks a request down into its network phases.
type TimingInfo struct {
	DNSLookupTime    time.Duration
	TCPConnectTime   time.Duration
	TLSHandshakeTime time.Duration
	TimeToFirstByte  time.Duration
	ConnectionReused bool
}

// ConnectTime returns the connection setup time, zero for a reused connection.
func (t TimingInfo) ConnectTime() time.Duration {
	return t.DNSLookupTime + t.TCPConnectTime + t.TLSHandshakeTime
}

// Response represents an HTTP response whose body has been read
type Response struct {
	StatusCode int
	Timing     TimingInfo

	// BytesReceived is the body size as transferred, before decompression
	BytesReceived int64

	body []byte
}

// GetBody returns the response body, decompressed
func (r *Response) GetBody() []byte {
	return r.body
}

// IsClientError returns true if the response status code is in the 4xx range
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError returns true if the response status code is in the 5xx range
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}
